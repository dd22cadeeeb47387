// Package archive stores the three compressed streams of one trace in a
// directory alongside a YAML manifest.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/gopacket/layers"
	"gopkg.in/yaml.v3"

	"firestige.xyz/flowzip/internal/core"
	"firestige.xyz/flowzip/internal/stream"
)

// FormatVersion is bumped whenever the stream layout changes.
const FormatVersion = 1

// File names inside an archive directory.
const (
	ManifestFile     = "manifest.yaml"
	TimestampsFile   = "timestamps.bin"
	FirstPacketsFile = "firstpkts.bin"
	DiffsFile        = "diffs.bin"
)

// StreamInfo is the size of one stream before and after the codec.
type StreamInfo struct {
	RawBytes    int64 `yaml:"raw_bytes" json:"raw_bytes"`
	StoredBytes int64 `yaml:"stored_bytes" json:"stored_bytes"`
}

// Manifest describes an archive.
type Manifest struct {
	Version      int             `yaml:"version" json:"version"`
	Codec        string          `yaml:"codec" json:"codec"`
	Level        int             `yaml:"level,omitempty" json:"level,omitempty"`
	LinkType     layers.LinkType `yaml:"link_type" json:"link_type"`
	SnapLen      int             `yaml:"snaplen" json:"snaplen"`
	Packets      uint32          `yaml:"packets" json:"packets"`
	Flows        int             `yaml:"flows" json:"flows"`
	Skipped      uint64          `yaml:"skipped,omitempty" json:"skipped,omitempty"`
	Created      time.Time       `yaml:"created" json:"created"`
	Timestamps   StreamInfo      `yaml:"timestamps" json:"timestamps"`
	FirstPackets StreamInfo      `yaml:"first_packets" json:"first_packets"`
	Diffs        StreamInfo      `yaml:"diffs" json:"diffs"`
}

// StoredBytes is the archive size on disk, manifest excluded.
func (m *Manifest) StoredBytes() int64 {
	return m.Timestamps.StoredBytes + m.FirstPackets.StoredBytes + m.Diffs.StoredBytes
}

// RawBytes is the combined size of the uncompressed streams.
func (m *Manifest) RawBytes() int64 {
	return m.Timestamps.RawBytes + m.FirstPackets.RawBytes + m.Diffs.RawBytes
}

// Validate checks fields a reader depends on.
func (m *Manifest) Validate() error {
	if m.Version != FormatVersion {
		return fmt.Errorf("%w: unsupported version %d", core.ErrArchiveInvalid, m.Version)
	}
	if _, err := stream.Lookup(m.Codec, m.Level); err != nil {
		return fmt.Errorf("%w: %v", core.ErrArchiveInvalid, err)
	}
	return nil
}

// ReadManifest loads and validates the manifest of the archive in dir.
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("%w: failed to read manifest %s: %w", core.ErrArchiveInvalid, path, err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("%w: failed to parse manifest %s: %v", core.ErrArchiveInvalid, path, err)
	}
	if err := m.Validate(); err != nil {
		return m, err
	}
	return m, nil
}

func writeManifest(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	path := filepath.Join(dir, ManifestFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", path, err)
	}
	return nil
}
