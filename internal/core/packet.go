// Package core defines core data structures with zero external dependencies.
package core

import (
	"net/netip"
	"time"
)

// RawPacket is one frame read from a trace file.
type RawPacket struct {
	Data       []byte    // Frame bytes as captured
	Timestamp  time.Time // Capture timestamp
	CaptureLen uint32    // Actual captured length
	OrigLen    uint32    // Original frame length on the wire
}

// EtherType values the header decoder understands.
const (
	EtherTypeIPv4 uint16 = 0x0800
	EtherTypeARP  uint16 = 0x0806
)

// Tuple is the flow-identifying subset of a packet's addressing.
type Tuple struct {
	EtherType uint16
	VLAN      uint16 // Outer VLAN ID, 0 if untagged
	Protocol  uint8  // IP protocol, or low byte of the ARP opcode
	Src       netip.Addr
	Dst       netip.Addr
	SrcPort   uint16
	DstPort   uint16
}

// Layout records where each header starts inside Packet.Data.
type Layout struct {
	L3Offset  int // Start of the IPv4 or ARP header
	L4Offset  int // Start of the TCP/UDP header, 0 if none
	HeaderLen int // Total header bytes, L2 through L4
}

// Packet is a frame decoded into tracked header fields.
type Packet struct {
	Timestamp time.Time
	Data      []byte
	Tuple     Tuple
	Layout    Layout
	Headers   HeaderValues
}

// Clone returns a deep copy whose Data can be patched independently.
func (p *Packet) Clone() *Packet {
	c := *p
	c.Data = append([]byte(nil), p.Data...)
	return &c
}

// HeaderBytes returns the L2-L4 header bytes of the frame.
func (p *Packet) HeaderBytes() []byte {
	if p.Layout.HeaderLen > len(p.Data) {
		return p.Data
	}
	return p.Data[:p.Layout.HeaderLen]
}

// InferredLen returns the original frame length implied by the headers:
// the L2 header plus the IP total length, or the stored length for non-IP frames.
func (p *Packet) InferredLen() uint32 {
	if p.Headers.IsSet(IPLen) {
		return uint32(p.Layout.L3Offset) + p.Headers[IPLen]
	}
	return uint32(len(p.Data))
}
