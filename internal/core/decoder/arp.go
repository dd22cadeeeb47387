package decoder

import (
	"encoding/binary"
	"net/netip"

	"firestige.xyz/flowzip/internal/core"
)

const (
	arpHeaderLen = 28 // Ethernet/IPv4 ARP
)

// decodeARP extracts the opcode and protocol addresses used as flow identity.
// ARP carries no tracked header fields.
func decodeARP(pkt *core.Packet) error {
	l3 := pkt.Layout.L3Offset
	data := pkt.Data[l3:]
	if len(data) < arpHeaderLen {
		return core.ErrPacketTooShort
	}

	op := binary.BigEndian.Uint16(data[6:8])
	pkt.Tuple.Protocol = uint8(op & 0xFF)

	ptype := binary.BigEndian.Uint16(data[2:4])
	if ptype == core.EtherTypeIPv4 && data[5] == 4 {
		pkt.Tuple.Src = netip.AddrFrom4([4]byte(data[14:18]))
		pkt.Tuple.Dst = netip.AddrFrom4([4]byte(data[24:28]))
	}
	pkt.Layout.HeaderLen = l3 + arpHeaderLen
	return nil
}
