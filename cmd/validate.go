package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/flowzip/internal/config"
	"firestige.xyz/flowzip/internal/filter"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file without compressing anything.

Example:
  flowzip validate -c /etc/flowzip/config.yml`,
	// Config errors are reported by the command itself.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(configFile, cmd.OutOrStdout())
	},
}

func runValidate(path string, w io.Writer) error {
	c, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(w, "INVALID: %v\n", err)
		return err
	}

	source := path
	if source == "" {
		source = "defaults"
	}
	protocols := "all"
	if f, err := filter.Compile(c.Compress.Filter); err == nil && len(f.Protocols()) > 0 {
		protocols = strings.Join(f.Protocols(), ",")
	}

	fmt.Fprintf(w, "VALID: %s\n", source)
	fmt.Fprintf(w, "  codec:    %s (level %d)\n", c.Compress.Codec, c.Compress.Level)
	fmt.Fprintf(w, "  snaplen:  %d\n", c.Compress.SnapLen)
	fmt.Fprintf(w, "  filter:   %s\n", protocols)
	fmt.Fprintf(w, "  on_error: %s\n", c.Compress.OnError)
	fmt.Fprintf(w, "  log:      %s/%s\n", c.Log.Level, strings.ToLower(c.Log.Format))
	if c.Metrics.Enabled {
		fmt.Fprintf(w, "  metrics:  %s%s\n", c.Metrics.Listen, c.Metrics.Path)
	}
	return nil
}
