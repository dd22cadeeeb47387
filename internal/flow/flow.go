package flow

import "firestige.xyz/flowzip/internal/core"

// State is the lifecycle state of a flow.
type State uint8

const (
	StateNew State = iota
	StateActive
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// Flow is the encoder-side state of one flow.
type Flow struct {
	Key   Key
	State State

	Packets uint64
	Bytes   uint64

	// Sequence numbers within the trace.
	FirstSeq uint32
	PrevSeq  uint32
	LastSeq  uint32

	// FirstIndex is the flow's slot in the first-packet stream.
	FirstIndex uint32

	First    core.HeaderValues
	Previous core.HeaderValues
	Current  core.HeaderValues
}

// ingest shifts current to previous and records p as current.
func (f *Flow) ingest(p *core.Packet, seq uint32) {
	f.Previous = f.Current
	f.Current = p.Headers
	f.PrevSeq = f.LastSeq
	f.LastSeq = seq
	f.Packets++
	f.Bytes += uint64(p.InferredLen())
}
