package archive

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/gopacket/layers"

	"firestige.xyz/flowzip/internal/stream"
)

// Options configure a new archive.
type Options struct {
	Codec    string
	Level    int
	LinkType layers.LinkType
	SnapLen  int
}

// Summary carries the totals known only once compression has finished.
type Summary struct {
	Packets uint32
	Flows   int
	Skipped uint64
}

// streamWriter is one output file: raw bytes -> codec -> stored bytes -> file.
type streamWriter struct {
	name   string
	file   *os.File
	buf    *bufio.Writer
	stored *stream.CountingWriter
	enc    io.WriteCloser
	raw    *stream.CountingWriter
}

func createStream(dir, name string, c stream.Codec) (*streamWriter, error) {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", name, err)
	}
	sw := &streamWriter{name: name, file: f, buf: bufio.NewWriter(f)}
	sw.stored = &stream.CountingWriter{W: sw.buf}
	sw.enc, err = c.NewWriter(sw.stored)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open %s encoder for %s: %w", c.Name(), name, err)
	}
	sw.raw = &stream.CountingWriter{W: sw.enc}
	return sw, nil
}

func (sw *streamWriter) close() (StreamInfo, error) {
	err := sw.enc.Close()
	if ferr := sw.buf.Flush(); err == nil {
		err = ferr
	}
	if cerr := sw.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return StreamInfo{}, fmt.Errorf("failed to close %s: %w", sw.name, err)
	}
	return StreamInfo{RawBytes: sw.raw.N, StoredBytes: sw.stored.N}, nil
}

// Writer creates an archive. The manifest is written by Close, so a
// directory without one is an incomplete archive.
type Writer struct {
	dir      string
	manifest Manifest
	streams  [3]*streamWriter
	closed   bool
}

// Create makes dir if needed and opens the three stream files.
func Create(dir string, opts Options) (*Writer, error) {
	if opts.Codec == "" {
		opts.Codec = stream.DefaultCodec
	}
	c, err := stream.Lookup(opts.Codec, opts.Level)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory %s: %w", dir, err)
	}
	// A stale manifest would describe the old streams.
	if err := os.Remove(filepath.Join(dir, ManifestFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove stale manifest: %w", err)
	}

	w := &Writer{
		dir: dir,
		manifest: Manifest{
			Version:  FormatVersion,
			Codec:    c.Name(),
			Level:    opts.Level,
			LinkType: opts.LinkType,
			SnapLen:  opts.SnapLen,
		},
	}
	for i, name := range []string{TimestampsFile, FirstPacketsFile, DiffsFile} {
		sw, err := createStream(dir, name, c)
		if err != nil {
			w.Abort()
			return nil, err
		}
		w.streams[i] = sw
	}
	return w, nil
}

// Timestamps returns the writer for the timestamp stream.
func (w *Writer) Timestamps() io.Writer { return w.streams[0].raw }

// FirstPackets returns the writer for the first-packet stream.
func (w *Writer) FirstPackets() io.Writer { return w.streams[1].raw }

// Diffs returns the writer for the diff-record stream.
func (w *Writer) Diffs() io.Writer { return w.streams[2].raw }

// Close finishes every stream and writes the manifest.
func (w *Writer) Close(sum Summary) (Manifest, error) {
	if w.closed {
		return w.manifest, nil
	}
	w.closed = true

	var infos [3]StreamInfo
	var errs []error
	for i, sw := range w.streams {
		info, err := sw.close()
		if err != nil {
			errs = append(errs, err)
		}
		infos[i] = info
	}
	if err := errors.Join(errs...); err != nil {
		return w.manifest, err
	}

	w.manifest.Packets = sum.Packets
	w.manifest.Flows = sum.Flows
	w.manifest.Skipped = sum.Skipped
	w.manifest.Created = time.Now().UTC().Truncate(time.Second)
	w.manifest.Timestamps = infos[0]
	w.manifest.FirstPackets = infos[1]
	w.manifest.Diffs = infos[2]

	if err := writeManifest(w.dir, &w.manifest); err != nil {
		return w.manifest, err
	}
	return w.manifest, nil
}

// Abort closes the stream files without writing a manifest, leaving an
// archive that Open rejects.
func (w *Writer) Abort() {
	if w.closed {
		return
	}
	w.closed = true
	for _, sw := range w.streams {
		if sw != nil {
			sw.enc.Close()
			sw.file.Close()
		}
	}
}
