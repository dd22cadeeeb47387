// Package flow identifies flows and tracks per-flow header state.
package flow

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/cespare/xxhash/v2"

	"firestige.xyz/flowzip/internal/core"
)

// KeyLen is the size of the packed key buffer.
const KeyLen = 20

// Key is a packed flow identity with a precomputed hash.
//
// Layout: [0:2] EtherType, [2:4] outer VLAN, [4] protocol, [5:8] zero,
// [8:12] source address, [12:16] destination address, [16:18] source port,
// [18:20] destination port. Keys compare equal iff their buffers do; the
// hash is derived from the buffer and never used for equality alone.
type Key struct {
	buf  [KeyLen]byte
	hash uint64
}

// NewKey packs the flow-identifying fields of t.
func NewKey(t core.Tuple) Key {
	var k Key
	binary.BigEndian.PutUint16(k.buf[0:2], t.EtherType)
	binary.BigEndian.PutUint16(k.buf[2:4], t.VLAN)
	k.buf[4] = t.Protocol
	putAddr(k.buf[8:12], t.Src)
	putAddr(k.buf[12:16], t.Dst)
	binary.BigEndian.PutUint16(k.buf[16:18], t.SrcPort)
	binary.BigEndian.PutUint16(k.buf[18:20], t.DstPort)
	k.hash = xxhash.Sum64(k.buf[:])
	return k
}

func putAddr(dst []byte, addr netip.Addr) {
	if addr.Is4() {
		a := addr.As4()
		copy(dst, a[:])
	}
}

// Bytes returns a copy of the packed buffer.
func (k Key) Bytes() [KeyLen]byte { return k.buf }

// Hash returns the 64-bit xxhash of the packed buffer.
func (k Key) Hash() uint64 { return k.hash }

// String formats the key as "proto src:sport > dst:dport".
func (k Key) String() string {
	src := netip.AddrFrom4([4]byte(k.buf[8:12]))
	dst := netip.AddrFrom4([4]byte(k.buf[12:16]))
	return fmt.Sprintf("%04x/%d %d %s:%d > %s:%d",
		binary.BigEndian.Uint16(k.buf[0:2]),
		binary.BigEndian.Uint16(k.buf[2:4]),
		k.buf[4],
		src, binary.BigEndian.Uint16(k.buf[16:18]),
		dst, binary.BigEndian.Uint16(k.buf[18:20]))
}
