// Package decoder implements L2-L4 header decoding and re-packing.
package decoder

import (
	"fmt"

	"firestige.xyz/flowzip/internal/core"
)

// Decoder decodes raw frames into tracked header fields.
type Decoder interface {
	Decode(raw core.RawPacket) (core.Packet, error)
}

// Config controls how frames are interpreted.
type Config struct {
	// RawIP is set for captures without an Ethernet header (LINKTYPE_RAW).
	RawIP bool
}

// StandardDecoder handles Ethernet (with VLAN tags), IPv4, ARP, TCP and UDP.
type StandardDecoder struct {
	cfg Config
}

// NewStandardDecoder creates a decoder.
func NewStandardDecoder(cfg Config) *StandardDecoder {
	return &StandardDecoder{cfg: cfg}
}

// Decode parses raw.Data. The returned packet references raw.Data without copying.
func (d *StandardDecoder) Decode(raw core.RawPacket) (core.Packet, error) {
	pkt := core.Packet{
		Timestamp: raw.Timestamp,
		Data:      raw.Data,
		Headers:   core.NewHeaderValues(),
	}

	etherType := core.EtherTypeIPv4
	if !d.cfg.RawIP {
		eth, err := decodeEthernet(raw.Data)
		if err != nil {
			return pkt, err
		}
		etherType = eth.etherType
		pkt.Tuple.VLAN = eth.vlan
		pkt.Layout.L3Offset = eth.headerLen
	}
	pkt.Tuple.EtherType = etherType

	switch etherType {
	case core.EtherTypeIPv4:
		if err := decodeIPv4(&pkt); err != nil {
			return pkt, fmt.Errorf("ipv4: %w", err)
		}
	case core.EtherTypeARP:
		if err := decodeARP(&pkt); err != nil {
			return pkt, fmt.Errorf("arp: %w", err)
		}
	default:
		return pkt, fmt.Errorf("ethertype 0x%04x: %w", etherType, core.ErrUnsupportedProto)
	}
	return pkt, nil
}
