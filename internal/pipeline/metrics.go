package pipeline

import (
	"sync/atomic"

	"firestige.xyz/flowzip/internal/codec"
	"firestige.xyz/flowzip/internal/metrics"
)

// Metrics contains per-pipeline counters, readable while the run is active.
type Metrics struct {
	Received     atomic.Uint64
	Filtered     atomic.Uint64
	DecodeErrors atomic.Uint64
	Encoded      atomic.Uint64
	Skipped      atomic.Uint64
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Reset resets all counters to zero.
func (m *Metrics) Reset() {
	m.Received.Store(0)
	m.Filtered.Store(0)
	m.DecodeErrors.Store(0)
	m.Encoded.Store(0)
	m.Skipped.Store(0)
}

// ObserveRecord exports one diff record to Prometheus. It is installed as
// the compressor's record hook.
func ObserveRecord(rec *codec.Record) {
	metrics.RecordChanges.Observe(float64(rec.Changes))
	for _, f := range rec.Fields {
		metrics.FieldChangesTotal.WithLabelValues(f.ID.String()).Inc()
	}
}
