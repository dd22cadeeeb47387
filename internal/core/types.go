// Package core defines core types with zero external dependencies.
package core

// HeaderID identifies one tracked header field. Values are persisted in
// diff records (6 bits on the wire) and must never be renumbered.
type HeaderID uint8

const (
	IPProto HeaderID = iota
	IPSrc
	IPDst
	TCPSrc
	TCPDst
	UDPSrc
	UDPDst

	// Fields from IPHL onward are compared packet to packet.
	IPHL
	IPTOS
	IPLen
	IPID
	IPOff
	IPTTL
	IPCsum
	TCPSeq
	TCPAck
	TCPOff
	TCPFlags
	TCPWin
	TCPCsum
	TCPUrp
	UDPCsum
	UDPLen

	NumHeaders
)

// FirstDiffHeader is the first field considered when building a diff record.
const FirstDiffHeader = IPHL

// Unset marks a field the packet does not carry.
const Unset uint32 = 0xFFFFFFFF

type headerInfo struct {
	name  string
	width uint8
	delta bool
}

// headerTable is built once and never written afterwards.
var headerTable = [NumHeaders]headerInfo{
	IPProto:  {"IP_PROTO", 8, false},
	IPSrc:    {"IP_SRC", 32, false},
	IPDst:    {"IP_DST", 32, false},
	TCPSrc:   {"TCP_SRC", 16, false},
	TCPDst:   {"TCP_DST", 16, false},
	UDPSrc:   {"UDP_SRC", 16, false},
	UDPDst:   {"UDP_DST", 16, false},
	IPHL:     {"IP_HL", 8, false},
	IPTOS:    {"IP_TOS", 8, false},
	IPLen:    {"IP_LEN", 16, false},
	IPID:     {"IP_ID", 16, true},
	IPOff:    {"IP_OFF", 16, false},
	IPTTL:    {"IP_TTL", 8, false},
	IPCsum:   {"IP_CSUM", 16, false},
	TCPSeq:   {"TCP_SEQ", 32, true},
	TCPAck:   {"TCP_ACK", 32, true},
	TCPOff:   {"TCP_OFF", 8, false},
	TCPFlags: {"TCP_FLAGS", 8, false},
	TCPWin:   {"TCP_WIN", 16, false},
	TCPCsum:  {"TCP_CSUM", 16, false},
	TCPUrp:   {"TCP_URP", 16, false},
	UDPCsum:  {"UDP_CSUM", 16, false},
	UDPLen:   {"UDP_LEN", 16, false},
}

// Valid reports whether id names a known field.
func (id HeaderID) Valid() bool { return id < NumHeaders }

// String returns the field name, e.g. "TCP_SEQ".
func (id HeaderID) String() string {
	if !id.Valid() {
		return "UNKNOWN"
	}
	return headerTable[id].name
}

// Width returns the field width in bits (8, 16 or 32).
func (id HeaderID) Width() uint8 {
	if !id.Valid() {
		return 0
	}
	return headerTable[id].width
}

// IsDelta reports whether the field is stored as a difference from the
// previous packet of the flow rather than as an absolute value.
func (id HeaderID) IsDelta() bool {
	return id.Valid() && headerTable[id].delta
}

// Mask truncates v to the field width.
func (id HeaderID) Mask(v uint32) uint32 {
	switch id.Width() {
	case 8:
		return v & 0xFF
	case 16:
		return v & 0xFFFF
	default:
		return v
	}
}

// ParseHeaderID resolves a field name produced by HeaderID.String.
func ParseHeaderID(name string) (HeaderID, bool) {
	for id := HeaderID(0); id < NumHeaders; id++ {
		if headerTable[id].name == name {
			return id, true
		}
	}
	return 0, false
}

// HeaderValues holds one packet's field values indexed by HeaderID.
type HeaderValues [NumHeaders]uint32

// NewHeaderValues returns a table with every field Unset.
func NewHeaderValues() HeaderValues {
	var hv HeaderValues
	hv.Reset()
	return hv
}

// Reset marks every field Unset.
func (hv *HeaderValues) Reset() {
	for i := range hv {
		hv[i] = Unset
	}
}

// IsSet reports whether the packet carries the field.
func (hv *HeaderValues) IsSet(id HeaderID) bool {
	return hv[id] != Unset
}
