// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"

	"firestige.xyz/flowzip/internal/core"
)

const (
	// Ethernet constants
	ethernetHeaderLen = 14
	vlanHeaderLen     = 4

	// EtherType values
	etherTypeVLAN = 0x8100
	etherTypeQinQ = 0x88A8
)

type ethernetInfo struct {
	etherType uint16
	vlan      uint16 // outermost VLAN ID
	headerLen int    // including VLAN tags
}

// decodeEthernet decodes Ethernet frame header (including VLAN tags).
func decodeEthernet(data []byte) (ethernetInfo, error) {
	if len(data) < ethernetHeaderLen {
		return ethernetInfo{}, core.ErrPacketTooShort
	}

	etherType := binary.BigEndian.Uint16(data[12:14])
	offset := ethernetHeaderLen

	// Handle VLAN tags (can be nested: QinQ)
	var info ethernetInfo
	tagged := false
	for etherType == etherTypeVLAN || etherType == etherTypeQinQ {
		if len(data) < offset+vlanHeaderLen {
			return info, core.ErrPacketTooShort
		}

		// VLAN header: 2 bytes TCI + 2 bytes EtherType
		tci := binary.BigEndian.Uint16(data[offset : offset+2])
		if !tagged {
			info.vlan = tci & 0x0FFF
			tagged = true
		}

		etherType = binary.BigEndian.Uint16(data[offset+2 : offset+4])
		offset += vlanHeaderLen
	}

	info.etherType = etherType
	info.headerLen = offset
	return info, nil
}
