// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PacketsTotal counts packets by run mode and outcome
	PacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowzip_packets_total",
			Help: "Total number of packets handled",
		},
		[]string{"mode", "result"},
	)

	// FlowsActive tracks the number of flows known to the compressor
	FlowsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowzip_flows_active",
			Help: "Number of flows tracked by the compressor",
		},
	)

	// StreamBytes tracks the size of each output stream before and after the codec
	StreamBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flowzip_stream_bytes",
			Help: "Size of each compressed stream in bytes",
		},
		[]string{"stream", "kind"},
	)

	// RecordChanges measures the number of changed fields per diff record
	RecordChanges = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flowzip_record_changes",
			Help:    "Number of changed header fields per diff record",
			Buckets: prometheus.LinearBuckets(0, 1, 15), // 0..14
		},
	)

	// FieldChangesTotal counts encoded field changes by header field
	FieldChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowzip_field_changes_total",
			Help: "Total number of encoded header field changes",
		},
		[]string{"field"},
	)

	// ProcessLatencySeconds measures per-packet processing latency
	ProcessLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowzip_process_latency_seconds",
			Help:    "Latency of per-packet processing in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0000001, 2, 20), // 100ns to ~50ms
		},
		[]string{"mode"},
	)
)

// Run modes used as the "mode" label.
const (
	ModeCompress   = "compress"
	ModeDecompress = "decompress"
)

// Packet outcomes used as the "result" label.
const (
	ResultEncoded     = "encoded"
	ResultDecoded     = "decoded"
	ResultFiltered    = "filtered"
	ResultSkipped     = "skipped"
	ResultDecodeError = "decode_error"
)
