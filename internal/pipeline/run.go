package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/gopacket/layers"

	"firestige.xyz/flowzip/internal/archive"
	"firestige.xyz/flowzip/internal/compress"
	"firestige.xyz/flowzip/internal/core"
	"firestige.xyz/flowzip/internal/core/decoder"
	"firestige.xyz/flowzip/internal/filter"
	"firestige.xyz/flowzip/internal/metrics"
	"firestige.xyz/flowzip/internal/sink/pcap"
	"firestige.xyz/flowzip/internal/source"
)

// CompressOptions configure CompressTrace.
type CompressOptions struct {
	Codec      string
	Level      int
	SnapLen    int
	Filter     []string
	AbortOnErr bool
	BufferSize int
}

// CompressResult summarises one compression run.
type CompressResult struct {
	Manifest archive.Manifest `json:"manifest"`
	Stats    compress.Stats   `json:"stats"`
	Pipeline Stats            `json:"pipeline"`
	Elapsed  time.Duration    `json:"elapsed_ns"`
}

// NewDecoder returns a header decoder for frames of the given link type.
func NewDecoder(lt layers.LinkType) (decoder.Decoder, error) {
	switch lt {
	case layers.LinkTypeEthernet:
		return decoder.NewStandardDecoder(decoder.Config{}), nil
	case layers.LinkTypeRaw, layers.LinkTypeIPv4:
		return decoder.NewStandardDecoder(decoder.Config{RawIP: true}), nil
	default:
		return nil, fmt.Errorf("link type %s: %w", lt, core.ErrUnsupportedProto)
	}
}

// CompressTrace compresses the trace at input into an archive in outDir.
// On failure no manifest is written.
func CompressTrace(ctx context.Context, input, outDir string, opts CompressOptions) (*CompressResult, error) {
	src, err := source.Open(input)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dec, err := NewDecoder(src.LinkType())
	if err != nil {
		return nil, err
	}
	f, err := filter.Compile(opts.Filter)
	if err != nil {
		return nil, err
	}
	if src.LinkType() != layers.LinkTypeEthernet && len(f.Protocols()) > 0 {
		return nil, fmt.Errorf("%w: protocol filter requires an Ethernet trace", core.ErrConfigInvalid)
	}

	if opts.SnapLen == 0 {
		opts.SnapLen = compress.MaxSnapLen
	}
	w, err := archive.Create(outDir, archive.Options{
		Codec:    opts.Codec,
		Level:    opts.Level,
		LinkType: src.LinkType(),
		SnapLen:  opts.SnapLen,
	})
	if err != nil {
		return nil, err
	}

	c := compress.NewCompressor(w.Timestamps(), w.FirstPackets(), w.Diffs(), compress.Config{
		SnapLen:  opts.SnapLen,
		OnRecord: ObserveRecord,
	})
	p := NewBuilder().
		WithCapturer(src).
		WithDecoder(dec).
		WithFilter(f).
		WithCompressor(c).
		WithAbortOnError(opts.AbortOnErr).
		WithBufferSize(opts.BufferSize).
		Build()

	slog.Info("compressing", "input", input, "output", outDir, "link_type", src.LinkType().String(),
		"filter", f.Protocols())
	start := time.Now()
	if err := p.Run(ctx); err != nil {
		w.Abort()
		return nil, err
	}

	stats := c.Stats()
	m, err := w.Close(archive.Summary{
		Packets: c.Packets(),
		Flows:   c.Flows().Len(),
		Skipped: stats.Skipped,
	})
	if err != nil {
		return nil, err
	}
	publishManifest(&m)

	return &CompressResult{
		Manifest: m,
		Stats:    stats,
		Pipeline: p.Stats(),
		Elapsed:  time.Since(start),
	}, nil
}

// DecompressArchive rebuilds the packets of the archive in dir as a pcap
// file at output and returns the number of packets written.
func DecompressArchive(ctx context.Context, dir, output string) (uint64, error) {
	r, err := archive.Open(dir)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	dec, err := NewDecoder(r.Manifest.LinkType)
	if err != nil {
		return 0, err
	}
	d, err := compress.NewDecompressor(r.Timestamps(), r.FirstPackets(), r.Diffs(), dec)
	if err != nil {
		return 0, err
	}

	sink, err := pcap.Create(output, r.Manifest.LinkType)
	if err != nil {
		return 0, err
	}
	n, err := Restore(ctx, d, sink)
	if cerr := sink.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}
	if n != uint64(r.Manifest.Packets) {
		slog.Warn("packet count differs from manifest", "manifest", r.Manifest.Packets, "restored", n)
	}
	return n, nil
}

func publishManifest(m *archive.Manifest) {
	for name, info := range map[string]archive.StreamInfo{
		"timestamps":    m.Timestamps,
		"first_packets": m.FirstPackets,
		"diffs":         m.Diffs,
	} {
		metrics.StreamBytes.WithLabelValues(name, "raw").Set(float64(info.RawBytes))
		metrics.StreamBytes.WithLabelValues(name, "stored").Set(float64(info.StoredBytes))
	}
}
