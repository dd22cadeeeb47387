package compress

import (
	"maps"

	"firestige.xyz/flowzip/internal/codec"
)

// FieldStats counts how often one header field appeared in diff records.
// Bytes includes the field's id/length byte.
type FieldStats struct {
	Changes uint64 `json:"changes"`
	Bytes   uint64 `json:"bytes"`
}

// Stats summarizes one compression session.
type Stats struct {
	Packets      uint64 `json:"packets"`
	Flows        uint64 `json:"flows"`
	Skipped      uint64 `json:"skipped"`
	InputBytes   uint64 `json:"input_bytes"`
	HeaderBytes  uint64 `json:"header_bytes"`
	NonOneIPID   uint64 `json:"non_one_ip_id_deltas"`
	ZeroChange   uint64 `json:"zero_change_packets"`
	FirstPackets uint64 `json:"first_packets"`
	// DescriptorBytes counts one byte per record plus one per field.
	DescriptorBytes uint64 `json:"descriptor_bytes"`

	// Raw (pre byte-compression) stream sizes.
	TimestampBytes   uint64 `json:"timestamp_bytes"`
	FirstPacketBytes uint64 `json:"first_packet_bytes"`
	DiffBytes        uint64 `json:"diff_bytes"`

	ChangesPerPacket [codec.MaxChanges + 1]uint64 `json:"changes_per_packet"`
	Fields           map[string]FieldStats       `json:"fields"`
}

func newStats() Stats {
	return Stats{Fields: make(map[string]FieldStats)}
}

func (s *Stats) recordDiff(rec *codec.Record) {
	s.ChangesPerPacket[rec.Changes]++
	if rec.Changes == 0 {
		s.ZeroChange++
	}
	s.DescriptorBytes += uint64(len(rec.Fields))
	for _, f := range rec.Fields {
		fs := s.Fields[f.ID.String()]
		fs.Changes++
		fs.Bytes += 1 + uint64(f.Len)
		s.Fields[f.ID.String()] = fs
	}
}

// EncodedBytes is the total size of the three raw streams.
func (s *Stats) EncodedBytes() uint64 {
	return s.TimestampBytes + s.FirstPacketBytes + s.DiffBytes
}

// BitsPerPacket is the average raw encoded size per packet in bits.
func (s *Stats) BitsPerPacket() float64 {
	if s.Packets == 0 {
		return 0
	}
	return float64(s.EncodedBytes()*8) / float64(s.Packets)
}

// HeaderBitsPerPacket is the average uncompressed header size per packet in bits.
func (s *Stats) HeaderBitsPerPacket() float64 {
	if s.Packets == 0 {
		return 0
	}
	return float64(s.HeaderBytes*8) / float64(s.Packets)
}

// Clone returns a copy that does not share the Fields map.
func (s *Stats) Clone() Stats {
	c := *s
	c.Fields = maps.Clone(s.Fields)
	if c.Fields == nil {
		c.Fields = make(map[string]FieldStats)
	}
	return c
}
