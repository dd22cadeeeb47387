package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"firestige.xyz/flowzip/internal/stream"
)

// Reader exposes the decompressed streams of an archive.
type Reader struct {
	Manifest Manifest

	files   []*os.File
	readers [3]io.ReadCloser
}

// Open reads the manifest and opens the three streams through its codec.
func Open(dir string) (*Reader, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	c, err := stream.Lookup(m.Codec, m.Level)
	if err != nil {
		return nil, err
	}

	r := &Reader{Manifest: m}
	for i, name := range []string{TimestampsFile, FirstPacketsFile, DiffsFile} {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to open %s: %w", name, err)
		}
		r.files = append(r.files, f)

		rc, err := stream.Open(c, f)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to open %s decoder for %s: %w", c.Name(), name, err)
		}
		r.readers[i] = rc
	}
	return r, nil
}

// Timestamps returns the decompressed timestamp stream.
func (r *Reader) Timestamps() io.Reader { return r.readers[0] }

// FirstPackets returns the decompressed first-packet stream.
func (r *Reader) FirstPackets() io.Reader { return r.readers[1] }

// Diffs returns the decompressed diff-record stream.
func (r *Reader) Diffs() io.Reader { return r.readers[2] }

// Close releases the decoders and files.
func (r *Reader) Close() error {
	var errs []error
	for _, rc := range r.readers {
		if rc != nil {
			errs = append(errs, rc.Close())
		}
	}
	for _, f := range r.files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}
