// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"firestige.xyz/flowzip/internal/compress"
	"firestige.xyz/flowzip/internal/core"
	"firestige.xyz/flowzip/internal/filter"
	"firestige.xyz/flowzip/internal/stream"
)

// GlobalConfig represents the top-level configuration.
// Maps to the `flowzip:` root key in YAML.
type GlobalConfig struct {
	Compress CompressConfig `mapstructure:"compress"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

// ─── Compression ───

// On-error policies for packets the compressor cannot encode.
const (
	OnErrorSkip  = "skip"  // log, count and drop the packet
	OnErrorAbort = "abort" // stop the run
)

// CompressConfig controls the flow compressor and its output archive.
type CompressConfig struct {
	Codec   string   `mapstructure:"codec"`   // none / gzip / zstd / lz4 / snappy / brotli
	Level   int      `mapstructure:"level"`   // 0 = codec default
	SnapLen int      `mapstructure:"snaplen"` // bytes kept of each flow's first packet
	Filter  []string `mapstructure:"filter"`  // ip / arp / icmp / tcp / udp; empty = all
	OnError string   `mapstructure:"on_error"`
}

// ─── Pipeline ───

// PipelineConfig sizes the reader-to-compressor channel.
type PipelineConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`   // debug / info / warn / error
	Format  string           `mapstructure:"format"`  // json / text / pattern
	Pattern string           `mapstructure:"pattern"` // used by the pattern format
	Time    string           `mapstructure:"time"`    // time layout for the pattern format
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`  // MB
	MaxAgeDays int  `mapstructure:"max_age_days"` // Days
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `flowzip: ...`.
type configRoot struct {
	Flowzip GlobalConfig `mapstructure:"flowzip"`
}

// Load loads configuration from file. An empty path yields the defaults,
// still subject to environment overrides (e.g. FLOWZIP_COMPRESS_CODEC).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `flowzip.` key prefix maps to `FLOWZIP_` through the key replacer.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Flowzip

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use "flowzip." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Compress defaults
	v.SetDefault("flowzip.compress.codec", stream.DefaultCodec)
	v.SetDefault("flowzip.compress.level", 0)
	v.SetDefault("flowzip.compress.snaplen", compress.MaxSnapLen)
	v.SetDefault("flowzip.compress.filter", []string{})
	v.SetDefault("flowzip.compress.on_error", OnErrorSkip)

	// Pipeline defaults
	v.SetDefault("flowzip.pipeline.buffer_size", 1024)

	// Log defaults
	v.SetDefault("flowzip.log.level", "info")
	v.SetDefault("flowzip.log.format", "text")
	v.SetDefault("flowzip.log.pattern", "%time [%level] %msg%n")
	v.SetDefault("flowzip.log.time", "2006-01-02 15:04:05")
	v.SetDefault("flowzip.log.outputs.file.enabled", false)
	v.SetDefault("flowzip.log.outputs.file.path", "flowzip.log")
	v.SetDefault("flowzip.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("flowzip.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("flowzip.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("flowzip.log.outputs.file.rotation.compress", true)

	// Metrics defaults
	v.SetDefault("flowzip.metrics.enabled", false)
	v.SetDefault("flowzip.metrics.listen", "127.0.0.1:9091")
	v.SetDefault("flowzip.metrics.path", "/metrics")
}

// ValidateAndApplyDefaults validates configuration and normalises values.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: invalid log level: %s (must be debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text", "pattern":
	default:
		return fmt.Errorf("%w: invalid log format: %s (must be json/text/pattern)", core.ErrConfigInvalid, cfg.Log.Format)
	}
	if cfg.Log.Outputs.File.Enabled && cfg.Log.Outputs.File.Path == "" {
		return fmt.Errorf("%w: log.outputs.file.path is required when file output is enabled", core.ErrConfigInvalid)
	}

	// ── Compress validation ──
	cfg.Compress.Codec = strings.ToLower(cfg.Compress.Codec)
	if _, err := stream.Lookup(cfg.Compress.Codec, cfg.Compress.Level); err != nil {
		return fmt.Errorf("%w: compress: %v (available: %s)", core.ErrConfigInvalid, err, strings.Join(stream.Names(), ", "))
	}
	if cfg.Compress.SnapLen == 0 {
		cfg.Compress.SnapLen = compress.MaxSnapLen
	}
	if cfg.Compress.SnapLen < compress.MinSnapLen || cfg.Compress.SnapLen > compress.MaxSnapLen {
		return fmt.Errorf("%w: compress.snaplen %d out of range [%d, %d]",
			core.ErrConfigInvalid, cfg.Compress.SnapLen, compress.MinSnapLen, compress.MaxSnapLen)
	}
	f, err := filter.Compile(cfg.Compress.Filter)
	if err != nil {
		return err
	}
	cfg.Compress.Filter = f.Protocols()
	if cfg.Compress.OnError != OnErrorSkip && cfg.Compress.OnError != OnErrorAbort {
		return fmt.Errorf("%w: invalid compress.on_error: %s (must be skip/abort)", core.ErrConfigInvalid, cfg.Compress.OnError)
	}

	// ── Pipeline ──
	if cfg.Pipeline.BufferSize <= 0 {
		cfg.Pipeline.BufferSize = 1024
	}

	// ── Metrics ──
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("%w: metrics.listen is required when metrics.enabled=true", core.ErrConfigInvalid)
	}

	return nil
}
