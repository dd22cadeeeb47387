package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"firestige.xyz/flowzip/internal/archive"
	"firestige.xyz/flowzip/internal/codec"
)

var inspectLimit int

var inspectCmd = &cobra.Command{
	Use:   "inspect <archive>",
	Short: "Print an archive's manifest and diff records",
	Long: `Print the manifest of an archive followed by its diff records, one per
packet in capture order. A record with nchg 15 opens a new flow.

Example:
  flowzip inspect capture.fz --limit 20`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(args[0], inspectLimit, cmd.OutOrStdout())
	},
}

func init() {
	inspectCmd.Flags().IntVarP(&inspectLimit, "limit", "n", 0, "print at most N records (0 for all)")
}

func runInspect(dir string, limit int, w io.Writer) error {
	r, err := archive.Open(dir)
	if err != nil {
		return err
	}
	defer func() {
		if err := r.Close(); err != nil {
			slog.Warn("failed to close archive", "dir", dir, "error", err)
		}
	}()

	out, err := yaml.Marshal(&r.Manifest)
	if err != nil {
		return fmt.Errorf("failed to render manifest: %w", err)
	}
	fmt.Fprintf(w, "%s---\n", out)

	for seq := 0; limit <= 0 || seq < limit; seq++ {
		rec, err := codec.ReadRecord(r.Diffs())
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("record %d: %w", seq, err)
		}
		fmt.Fprintf(w, "%d: %s\n", seq, rec)
	}
	return nil
}
