package flow

import "firestige.xyz/flowzip/internal/core"

// Tracker stores flow state for one encoding session.
// Flows are never evicted. Tracker is not safe for concurrent use.
type Tracker struct {
	// buckets groups flows by key hash; colliding keys share a bucket.
	buckets map[uint64][]*Flow
	n       int
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{buckets: make(map[uint64][]*Flow)}
}

// Lookup returns the flow for key without modifying it.
func (t *Tracker) Lookup(key Key) (*Flow, bool) {
	for _, f := range t.buckets[key.hash] {
		if f.Key.buf == key.buf {
			return f, true
		}
	}
	return nil, false
}

// Observe records packet p with sequence number seq. It creates the flow
// on first sight (NEW to ACTIVE) and reports true in that case.
// Otherwise the flow's current values become its previous values.
func (t *Tracker) Observe(key Key, p *core.Packet, seq uint32) (*Flow, bool) {
	if existing, ok := t.Lookup(key); ok {
		existing.ingest(p, seq)
		return existing, false
	}

	f := &Flow{
		Key:      key,
		State:    StateActive,
		FirstSeq: seq,
		PrevSeq:  seq,
		LastSeq:  seq,
		First:    p.Headers,
		Previous: p.Headers,
		Current:  p.Headers,
		Packets:  1,
		Bytes:    uint64(p.InferredLen()),
	}
	t.buckets[key.hash] = append(t.buckets[key.hash], f)
	t.n++
	return f, true
}

// Len returns the number of flows.
func (t *Tracker) Len() int {
	return t.n
}

// Range iterates over all flows.
// fn should return true to continue iteration or false to stop.
func (t *Tracker) Range(fn func(f *Flow) bool) {
	for _, bucket := range t.buckets {
		for _, f := range bucket {
			if !fn(f) {
				return
			}
		}
	}
}
