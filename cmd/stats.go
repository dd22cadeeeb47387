package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/flowzip/internal/config"
	"firestige.xyz/flowzip/internal/pipeline"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats <trace>",
	Short: "Show per-field compression statistics for a trace",
	Long: `Compress a trace into a temporary archive and report how each header
field contributed to the result. The archive is removed afterwards.

Compression flags (--codec, --level, --snaplen, --filter) apply as for
the compress command.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		applyCompressFlags(cmd, &cfg.Compress)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runStats(ctx, cfg, args[0], statsJSON, cmd.OutOrStdout())
	},
}

func init() {
	f := statsCmd.Flags()
	f.BoolVar(&statsJSON, "json", false, "output statistics as JSON")
	f.StringVar(&compressFlags.codec, "codec", "", "stream codec: none/gzip/zstd/lz4/snappy/brotli")
	f.IntVar(&compressFlags.level, "level", 0, "codec level, 0 for the codec default")
	f.IntVar(&compressFlags.snapLen, "snaplen", 0, "bytes kept of each flow's first packet (64-254)")
	f.StringSliceVar(&compressFlags.filter, "filter", nil, "only compress these classes: ip/arp/icmp/tcp/udp")
}

func runStats(ctx context.Context, c *config.GlobalConfig, input string, asJSON bool, w io.Writer) error {
	if err := c.ValidateAndApplyDefaults(); err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "flowzip-stats-")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("failed to remove temp archive", "dir", dir, "error", err)
		}
	}()

	res, err := pipeline.CompressTrace(ctx, input, dir, compressOptions(c))
	if err != nil {
		return fmt.Errorf("compress %s: %w", input, err)
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printStats(w, res)
	return nil
}
