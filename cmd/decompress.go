package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/flowzip/internal/pipeline"
)

var decompressOutput string

var decompressCmd = &cobra.Command{
	Use:   "decompress <archive>",
	Short: "Rebuild packet headers from an archive into a pcap file",
	Long: `Rebuild every packet of an archive as a pcap record holding its L2-L4
headers, original timestamp and original wire length. Payloads are not
stored and are therefore not restored.

Example:
  flowzip decompress capture.fz -o restored.pcap`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runDecompress(ctx, args[0], decompressOutput, cmd.OutOrStdout())
	},
}

func init() {
	decompressCmd.Flags().StringVarP(&decompressOutput, "output", "o", "", "pcap file to write (required)")
	decompressCmd.MarkFlagRequired("output")
}

func runDecompress(ctx context.Context, dir, output string, w io.Writer) error {
	n, err := pipeline.DecompressArchive(ctx, dir, output)
	if err != nil {
		return fmt.Errorf("decompress %s: %w", dir, err)
	}
	fmt.Fprintf(w, "restored %d packets to %s\n", n, output)
	return nil
}
