package decoder

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/flowzip/internal/core"
)

// Pack rebuilds p.Data so that its headers carry p.Headers.
//
// p.Data must hold the headers of a packet from the same flow, typically
// the diff reference. Link-layer bytes and IP/TCP options are kept from
// it, tracked fields are overwritten and any payload is dropped.
func Pack(p *core.Packet) error {
	l3 := p.Layout.L3Offset
	old := p.Data
	if len(old) < l3 {
		return core.ErrPacketTooShort
	}

	switch p.Tuple.EtherType {
	case core.EtherTypeARP:
		if len(old) < l3+arpHeaderLen {
			return core.ErrPacketTooShort
		}
		p.Data = append([]byte(nil), old[:l3+arpHeaderLen]...)
		p.Layout.HeaderLen = len(p.Data)
		p.Layout.L4Offset = 0
		return nil
	case core.EtherTypeIPv4:
	default:
		return fmt.Errorf("ethertype 0x%04x: %w", p.Tuple.EtherType, core.ErrUnsupportedProto)
	}

	h := &p.Headers
	ipLen := int(h[core.IPHL]&0x0F) * 4
	if ipLen < ipv4HeaderMinLen {
		return fmt.Errorf("ip header length %d: %w", ipLen, core.ErrPacketTooShort)
	}

	l4Len := 0
	if h[core.IPOff]&fragOffsetMask == 0 {
		switch p.Tuple.Protocol {
		case protocolTCP:
			l4Len = int(h[core.TCPOff]&0x0F) * 4
			if l4Len < tcpHeaderMinLen {
				return fmt.Errorf("tcp header length %d: %w", l4Len, core.ErrPacketTooShort)
			}
		case protocolUDP:
			l4Len = udpHeaderLen
		}
	}

	buf := make([]byte, l3+ipLen+l4Len)
	copy(buf, old[:l3])
	copy(buf[l3:l3+ipLen], old[l3:])
	if l4Len > 0 && p.Layout.L4Offset > 0 && p.Layout.L4Offset < len(old) {
		copy(buf[l3+ipLen:], old[p.Layout.L4Offset:])
	}

	ip := buf[l3:]
	ip[0] = 0x40 | byte(h[core.IPHL]&0x0F)
	put8(ip[1:], h, core.IPTOS)
	put16(ip[2:], h, core.IPLen)
	put16(ip[4:], h, core.IPID)
	put16(ip[6:], h, core.IPOff)
	put8(ip[8:], h, core.IPTTL)
	put8(ip[9:], h, core.IPProto)
	put16(ip[10:], h, core.IPCsum)
	put32(ip[12:], h, core.IPSrc)
	put32(ip[16:], h, core.IPDst)

	p.Layout.L4Offset = 0
	if l4Len > 0 {
		p.Layout.L4Offset = l3 + ipLen
		l4 := buf[p.Layout.L4Offset:]
		switch p.Tuple.Protocol {
		case protocolTCP:
			put16(l4[0:], h, core.TCPSrc)
			put16(l4[2:], h, core.TCPDst)
			put32(l4[4:], h, core.TCPSeq)
			put32(l4[8:], h, core.TCPAck)
			l4[12] = byte(h[core.TCPOff]&0x0F)<<4 | l4[12]&0x0F
			put8(l4[13:], h, core.TCPFlags)
			put16(l4[14:], h, core.TCPWin)
			put16(l4[16:], h, core.TCPCsum)
			put16(l4[18:], h, core.TCPUrp)
		case protocolUDP:
			put16(l4[0:], h, core.UDPSrc)
			put16(l4[2:], h, core.UDPDst)
			put16(l4[4:], h, core.UDPLen)
			put16(l4[6:], h, core.UDPCsum)
		}
	}

	p.Data = buf
	p.Layout.HeaderLen = len(buf)
	return nil
}

func put8(b []byte, h *core.HeaderValues, id core.HeaderID) {
	if h.IsSet(id) {
		b[0] = byte(h[id])
	}
}

func put16(b []byte, h *core.HeaderValues, id core.HeaderID) {
	if h.IsSet(id) {
		binary.BigEndian.PutUint16(b, uint16(h[id]))
	}
}

func put32(b []byte, h *core.HeaderValues, id core.HeaderID) {
	if h.IsSet(id) {
		binary.BigEndian.PutUint32(b, h[id])
	}
}
