// Package pipeline drives packets from a trace source through the decoder,
// filter and flow compressor, and back out of an archive into a sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"firestige.xyz/flowzip/internal/compress"
	"firestige.xyz/flowzip/internal/core"
	"firestige.xyz/flowzip/internal/core/decoder"
	"firestige.xyz/flowzip/internal/filter"
	"firestige.xyz/flowzip/internal/metrics"
)

// Capturer produces raw packets in capture order.
type Capturer interface {
	Capture(ctx context.Context, out chan<- core.RawPacket) error
}

// Pipeline is a single-threaded compression chain fed by one reader goroutine.
type Pipeline struct {
	capturer   Capturer
	decoder    decoder.Decoder
	filter     *filter.Filter
	compressor *compress.Compressor
	abortOnErr bool
	metrics    *Metrics

	wg sync.WaitGroup

	// Channel for backpressure control
	rawPacketChan chan core.RawPacket

	captureErr error
	processErr error
}

// Config contains pipeline configuration.
type Config struct {
	Capturer   Capturer
	Decoder    decoder.Decoder
	Filter     *filter.Filter // nil accepts every frame
	Compressor *compress.Compressor
	AbortOnErr bool // stop on the first packet that cannot be encoded
	BufferSize int  // Raw packet channel buffer size
}

// New creates a new pipeline.
func New(cfg Config) *Pipeline {
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 1024 // Default buffer size
	}

	return &Pipeline{
		capturer:      cfg.Capturer,
		decoder:       cfg.Decoder,
		filter:        cfg.Filter,
		compressor:    cfg.Compressor,
		abortOnErr:    cfg.AbortOnErr,
		metrics:       NewMetrics(),
		rawPacketChan: make(chan core.RawPacket, cfg.BufferSize),
	}
}

// Run compresses every packet the capturer produces and flushes the
// compressor. It returns once the trace is exhausted, ctx is cancelled or
// a packet fails in a way that cannot be skipped.
func (p *Pipeline) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	slog.Info("pipeline starting")
	start := time.Now()

	p.wg.Add(2)
	go p.captureLoop(ctx)
	go p.processLoop(ctx, cancel)
	p.wg.Wait()

	metrics.FlowsActive.Set(float64(p.compressor.Flows().Len()))

	if err := p.compressor.Flush(); err != nil {
		return err
	}
	if p.processErr != nil {
		return p.processErr
	}
	if p.captureErr != nil {
		return fmt.Errorf("capture failed: %w", p.captureErr)
	}
	if err := parent.Err(); err != nil {
		return err
	}

	s := p.Stats()
	slog.Info("pipeline finished",
		"received", s.Received, "encoded", s.Encoded, "skipped", s.Skipped,
		"filtered", s.Filtered, "elapsed", time.Since(start))
	return nil
}

// captureLoop reads packets from capturer and sends to processing channel.
func (p *Pipeline) captureLoop(ctx context.Context) {
	defer p.wg.Done()

	if err := p.capturer.Capture(ctx, p.rawPacketChan); err != nil && ctx.Err() == nil {
		// Context not cancelled, this is a real error
		p.captureErr = err
	}

	// Close channel when capture ends
	close(p.rawPacketChan)
}

// processLoop is the main processing loop.
func (p *Pipeline) processLoop(ctx context.Context, cancel context.CancelFunc) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case raw, ok := <-p.rawPacketChan:
			if !ok {
				// Channel closed, capturer stopped
				return
			}

			p.metrics.Received.Add(1)

			if err := p.processPacket(raw); err != nil {
				p.processErr = err
				cancel()
				return
			}
		}
	}
}

// processPacket filters, decodes and compresses one packet.
func (p *Pipeline) processPacket(raw core.RawPacket) error {
	start := time.Now()
	defer func() {
		metrics.ProcessLatencySeconds.WithLabelValues(metrics.ModeCompress).Observe(time.Since(start).Seconds())
	}()

	if !p.filter.Match(raw.Data) {
		p.metrics.Filtered.Add(1)
		metrics.PacketsTotal.WithLabelValues(metrics.ModeCompress, metrics.ResultFiltered).Inc()
		return nil
	}

	pkt, err := p.decoder.Decode(raw)
	if err != nil {
		p.metrics.DecodeErrors.Add(1)
		metrics.PacketsTotal.WithLabelValues(metrics.ModeCompress, metrics.ResultDecodeError).Inc()
		return p.skip(raw, fmt.Errorf("decode failed: %w", err))
	}

	if err := p.compressor.Compress(&pkt); err != nil {
		if !skippable(err) {
			return fmt.Errorf("packet %d: %w", p.metrics.Received.Load()-1, err)
		}
		return p.skip(raw, err)
	}

	p.metrics.Encoded.Add(1)
	metrics.PacketsTotal.WithLabelValues(metrics.ModeCompress, metrics.ResultEncoded).Inc()
	return nil
}

// skippable errors leave the compressor untouched, so the packet can be
// dropped and the run continued.
func skippable(err error) bool {
	return errors.Is(err, core.ErrTimestampOverflow) || errors.Is(err, core.ErrTooManyChanges)
}

func (p *Pipeline) skip(raw core.RawPacket, err error) error {
	index := p.metrics.Received.Load() - 1
	if p.abortOnErr {
		return fmt.Errorf("packet %d: %w", index, err)
	}

	p.compressor.Skip()
	p.metrics.Skipped.Add(1)
	metrics.PacketsTotal.WithLabelValues(metrics.ModeCompress, metrics.ResultSkipped).Inc()
	slog.Warn("packet skipped", "packet", index, "ts", raw.Timestamp, "error", err)
	return nil
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Received:     p.metrics.Received.Load(),
		Filtered:     p.metrics.Filtered.Load(),
		DecodeErrors: p.metrics.DecodeErrors.Load(),
		Encoded:      p.metrics.Encoded.Load(),
		Skipped:      p.metrics.Skipped.Load(),
	}
}

// Stats represents pipeline statistics.
type Stats struct {
	Received     uint64 `json:"received"`
	Filtered     uint64 `json:"filtered"`
	DecodeErrors uint64 `json:"decode_errors"`
	Encoded      uint64 `json:"encoded"`
	Skipped      uint64 `json:"skipped"`
}
