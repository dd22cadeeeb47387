package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/flowzip/internal/config"
	"firestige.xyz/flowzip/internal/metrics"
	"firestige.xyz/flowzip/internal/pipeline"
)

var compressFlags struct {
	output  string
	codec   string
	level   int
	snapLen int
	filter  []string
	abort   bool
}

var compressCmd = &cobra.Command{
	Use:   "compress <trace>",
	Short: "Compress a pcap, pcapng or hex trace into an archive",
	Long: `Compress a packet trace into an archive directory.

The input format is detected from the file: pcap and pcapng by magic
number, one hex-encoded frame per line for .hex, .ns and .txt files.

Examples:
  flowzip compress capture.pcap -o capture.fz
  flowzip compress capture.pcapng -o capture.fz --codec lz4 --filter tcp,udp`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		applyCompressFlags(cmd, &cfg.Compress)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runCompress(ctx, cfg, args[0], compressFlags.output, cmd.OutOrStdout())
	},
}

func init() {
	f := compressCmd.Flags()
	f.StringVarP(&compressFlags.output, "output", "o", "", "archive directory (required)")
	f.StringVar(&compressFlags.codec, "codec", "", "stream codec: none/gzip/zstd/lz4/snappy/brotli")
	f.IntVar(&compressFlags.level, "level", 0, "codec level, 0 for the codec default")
	f.IntVar(&compressFlags.snapLen, "snaplen", 0, "bytes kept of each flow's first packet (64-254)")
	f.StringSliceVar(&compressFlags.filter, "filter", nil, "only compress these classes: ip/arp/icmp/tcp/udp")
	f.BoolVar(&compressFlags.abort, "abort-on-error", false, "stop at the first packet that cannot be encoded")
	compressCmd.MarkFlagRequired("output")
}

// applyCompressFlags overrides config values with flags the user set, then
// re-validates.
func applyCompressFlags(cmd *cobra.Command, c *config.CompressConfig) {
	flags := cmd.Flags()
	if flags.Changed("codec") {
		c.Codec = compressFlags.codec
	}
	if flags.Changed("level") {
		c.Level = compressFlags.level
	}
	if flags.Changed("snaplen") {
		c.SnapLen = compressFlags.snapLen
	}
	if flags.Changed("filter") {
		c.Filter = compressFlags.filter
	}
	if flags.Changed("abort-on-error") && compressFlags.abort {
		c.OnError = config.OnErrorAbort
	}
}

func compressOptions(c *config.GlobalConfig) pipeline.CompressOptions {
	return pipeline.CompressOptions{
		Codec:      c.Compress.Codec,
		Level:      c.Compress.Level,
		SnapLen:    c.Compress.SnapLen,
		Filter:     c.Compress.Filter,
		AbortOnErr: c.Compress.OnError == config.OnErrorAbort,
		BufferSize: c.Pipeline.BufferSize,
	}
}

func runCompress(ctx context.Context, c *config.GlobalConfig, input, output string, w io.Writer) error {
	if err := c.ValidateAndApplyDefaults(); err != nil {
		return err
	}

	if c.Metrics.Enabled {
		srv := metrics.NewServer(c.Metrics.Listen, c.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := srv.Stop(context.Background()); err != nil {
				slog.Error("failed to stop metrics server", "error", err)
			}
		}()
	}

	res, err := pipeline.CompressTrace(ctx, input, output, compressOptions(c))
	if err != nil {
		return fmt.Errorf("compress %s: %w", input, err)
	}

	printSummary(w, output, res)
	return nil
}
