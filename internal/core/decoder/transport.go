// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"

	"firestige.xyz/flowzip/internal/core"
)

const (
	udpHeaderLen    = 8
	tcpHeaderMinLen = 20

	// Protocol numbers
	protocolICMP = 1
	protocolTCP  = 6
	protocolUDP  = 17
)

// decodeTransport decodes transport layer header (TCP/UDP).
func decodeTransport(pkt *core.Packet) error {
	data := pkt.Data[pkt.Layout.L4Offset:]
	switch pkt.Tuple.Protocol {
	case protocolTCP:
		return decodeTCP(pkt, data)
	case protocolUDP:
		return decodeUDP(pkt, data)
	case protocolICMP:
		// Type and code identify the flow; the ICMP body is not tracked.
		if len(data) >= 2 {
			pkt.Tuple.SrcPort = uint16(data[0])
			pkt.Tuple.DstPort = uint16(data[1])
		}
		pkt.Layout.L4Offset = 0
		return nil
	default:
		// Unsupported transport protocol (e.g., SCTP, GRE): IP fields only
		pkt.Layout.L4Offset = 0
		return nil
	}
}

// decodeUDP decodes UDP header.
func decodeUDP(pkt *core.Packet, data []byte) error {
	if len(data) < udpHeaderLen {
		return core.ErrPacketTooShort
	}

	h := &pkt.Headers
	h[core.UDPSrc] = uint32(binary.BigEndian.Uint16(data[0:2]))
	h[core.UDPDst] = uint32(binary.BigEndian.Uint16(data[2:4]))
	h[core.UDPLen] = uint32(binary.BigEndian.Uint16(data[4:6]))
	h[core.UDPCsum] = uint32(binary.BigEndian.Uint16(data[6:8]))

	pkt.Tuple.SrcPort = uint16(h[core.UDPSrc])
	pkt.Tuple.DstPort = uint16(h[core.UDPDst])
	pkt.Layout.HeaderLen = pkt.Layout.L4Offset + udpHeaderLen
	return nil
}

// decodeTCP decodes TCP header.
func decodeTCP(pkt *core.Packet, data []byte) error {
	if len(data) < tcpHeaderMinLen {
		return core.ErrPacketTooShort
	}

	// Data offset is in 32-bit words
	dataOffset := data[12] >> 4
	headerLen := int(dataOffset) * 4
	if headerLen < tcpHeaderMinLen || len(data) < headerLen {
		return core.ErrPacketTooShort
	}

	h := &pkt.Headers
	h[core.TCPSrc] = uint32(binary.BigEndian.Uint16(data[0:2]))
	h[core.TCPDst] = uint32(binary.BigEndian.Uint16(data[2:4]))
	h[core.TCPSeq] = binary.BigEndian.Uint32(data[4:8])
	h[core.TCPAck] = binary.BigEndian.Uint32(data[8:12])
	h[core.TCPOff] = uint32(dataOffset)
	h[core.TCPFlags] = uint32(data[13])
	h[core.TCPWin] = uint32(binary.BigEndian.Uint16(data[14:16]))
	h[core.TCPCsum] = uint32(binary.BigEndian.Uint16(data[16:18]))
	h[core.TCPUrp] = uint32(binary.BigEndian.Uint16(data[18:20]))

	pkt.Tuple.SrcPort = uint16(h[core.TCPSrc])
	pkt.Tuple.DstPort = uint16(h[core.TCPDst])
	pkt.Layout.HeaderLen = pkt.Layout.L4Offset + headerLen
	return nil
}
