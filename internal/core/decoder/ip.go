// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"
	"net/netip"

	"firestige.xyz/flowzip/internal/core"
)

const (
	ipv4HeaderMinLen = 20

	fragOffsetMask = 0x1FFF
)

// decodeIPv4 fills the IP fields of pkt and continues into the transport header.
func decodeIPv4(pkt *core.Packet) error {
	l3 := pkt.Layout.L3Offset
	data := pkt.Data[l3:]
	if len(data) < ipv4HeaderMinLen {
		return core.ErrPacketTooShort
	}
	if data[0]>>4 != 4 {
		return core.ErrUnsupportedProto
	}

	// IHL is in 32-bit words
	ihl := data[0] & 0x0F
	headerLen := int(ihl) * 4
	if headerLen < ipv4HeaderMinLen || len(data) < headerLen {
		return core.ErrPacketTooShort
	}

	h := &pkt.Headers
	h[core.IPHL] = uint32(ihl)
	h[core.IPTOS] = uint32(data[1])
	h[core.IPLen] = uint32(binary.BigEndian.Uint16(data[2:4]))
	h[core.IPID] = uint32(binary.BigEndian.Uint16(data[4:6]))
	h[core.IPOff] = uint32(binary.BigEndian.Uint16(data[6:8]))
	h[core.IPTTL] = uint32(data[8])
	h[core.IPProto] = uint32(data[9])
	h[core.IPCsum] = uint32(binary.BigEndian.Uint16(data[10:12]))
	h[core.IPSrc] = binary.BigEndian.Uint32(data[12:16])
	h[core.IPDst] = binary.BigEndian.Uint32(data[16:20])

	pkt.Tuple.Protocol = data[9]
	pkt.Tuple.Src = netip.AddrFrom4([4]byte(data[12:16]))
	pkt.Tuple.Dst = netip.AddrFrom4([4]byte(data[16:20]))
	pkt.Layout.HeaderLen = l3 + headerLen

	// Non-initial fragments carry no transport header.
	if h[core.IPOff]&fragOffsetMask != 0 {
		return nil
	}

	pkt.Layout.L4Offset = l3 + headerLen
	return decodeTransport(pkt)
}
