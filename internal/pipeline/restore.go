package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"firestige.xyz/flowzip/internal/compress"
	"firestige.xyz/flowzip/internal/core"
	"firestige.xyz/flowzip/internal/metrics"
)

// PacketWriter receives reconstructed packets.
type PacketWriter interface {
	Write(raw core.RawPacket) error
}

// cancelCheckInterval is how many packets are restored between context checks.
const cancelCheckInterval = 4096

// Restore reads every packet from d and writes it to w, returning the
// number of packets written.
func Restore(ctx context.Context, d *compress.Decompressor, w PacketWriter) (uint64, error) {
	slog.Info("restore starting", "packets", d.Packets(), "first_packets", d.FirstPackets())
	start := time.Now()

	var n uint64
	for {
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}

		t := time.Now()
		out, err := d.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, err
		}
		if err := w.Write(out.Raw); err != nil {
			return n, err
		}
		n++

		metrics.PacketsTotal.WithLabelValues(metrics.ModeDecompress, metrics.ResultDecoded).Inc()
		metrics.ProcessLatencySeconds.WithLabelValues(metrics.ModeDecompress).Observe(time.Since(t).Seconds())
	}

	slog.Info("restore finished", "packets", n, "elapsed", time.Since(start))
	return n, nil
}
