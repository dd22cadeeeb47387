// Package log configures the process-wide slog logger used by every
// flowzip command.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"firestige.xyz/flowzip/internal/config"
)

// formats builds the handler for each accepted log format.
var formats = map[string]func(w io.Writer, level slog.Level, cfg config.LogConfig) slog.Handler{
	"json": func(w io.Writer, level slog.Level, _ config.LogConfig) slog.Handler {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	},
	"text": func(w io.Writer, level slog.Level, _ config.LogConfig) slog.Handler {
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	},
	"pattern": func(w io.Writer, level slog.Level, cfg config.LogConfig) slog.Handler {
		return newPatternHandler(w, level, cfg.Pattern, cfg.Time)
	},
}

var (
	mu sync.Mutex
	// rotation is the open log file, if file output is enabled.
	rotation *lumberjack.Logger
)

// Init installs the global logger. Console output goes to stderr so that
// stdout only carries command results. Calling Init again replaces the
// logger and closes the previous log file.
func Init(cfg config.LogConfig) error {
	return initWithWriter(cfg, os.Stderr)
}

func initWithWriter(cfg config.LogConfig, console io.Writer) error {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	build, ok := formats[strings.ToLower(cfg.Format)]
	if !ok {
		return fmt.Errorf("unsupported log format: %s (must be json, text or pattern)", cfg.Format)
	}

	var file *lumberjack.Logger
	out := console
	if cfg.Outputs.File.Enabled {
		if file, err = createFileWriter(cfg.Outputs.File); err != nil {
			return fmt.Errorf("failed to create file output: %w", err)
		}
		out = io.MultiWriter(console, file)
	}

	mu.Lock()
	prev := rotation
	rotation = file
	mu.Unlock()

	slog.SetDefault(slog.New(build(out, level, cfg)))
	if prev != nil {
		return prev.Close()
	}
	return nil
}

// Close releases the log file opened by Init. It is safe to call when no
// file output is configured.
func Close() error {
	mu.Lock()
	file := rotation
	rotation = nil
	mu.Unlock()

	if file == nil {
		return nil
	}
	return file.Close()
}

// parseLevel accepts slog level names (with optional offsets such as
// "info+2") and the "warning" alias.
func parseLevel(s string) (slog.Level, error) {
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown level: %q", s)
	}
	return level, nil
}

// createFileWriter opens a rotating log file.
func createFileWriter(fc config.FileOutputConfig) (*lumberjack.Logger, error) {
	if fc.Path == "" {
		return nil, fmt.Errorf("file output requires 'path' field")
	}
	return &lumberjack.Logger{
		Filename:   fc.Path,
		MaxSize:    fc.Rotation.MaxSizeMB,
		MaxBackups: fc.Rotation.MaxBackups,
		MaxAge:     fc.Rotation.MaxAgeDays,
		Compress:   fc.Rotation.Compress,
	}, nil
}
