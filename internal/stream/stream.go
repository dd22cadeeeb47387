// Package stream wraps the three compressor output streams in a
// general-purpose byte compressor before they reach disk.
package stream

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"

	"firestige.xyz/flowzip/internal/core"
)

// Codec compresses and decompresses one byte stream.
type Codec interface {
	Name() string
	NewWriter(w io.Writer) (io.WriteCloser, error)
	NewReader(r io.Reader) (io.ReadCloser, error)
}

// DefaultCodec is used when no codec is configured.
const DefaultCodec = "zstd"

type factory func(level int) (Codec, error)

var registry = map[string]factory{
	"none":   func(int) (Codec, error) { return noneCodec{}, nil },
	"gzip":   newGzipCodec,
	"zstd":   newZstdCodec,
	"lz4":    newLZ4Codec,
	"snappy": func(int) (Codec, error) { return snappyCodec{}, nil },
	"brotli": newBrotliCodec,
}

// Lookup returns the codec registered under name. A level of 0 selects the
// codec's default; codecs without levels ignore it.
func Lookup(name string, level int) (Codec, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownCodec, name)
	}
	c, err := f(level)
	if err != nil {
		return nil, fmt.Errorf("codec %s: %w", name, err)
	}
	return c, nil
}

// Names lists the registered codec names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open returns a reader for a compressed stream. A zero-length input
// decodes to zero bytes for every codec.
func Open(c Codec, r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	if _, err := br.Peek(1); err == io.EOF {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	return c.NewReader(br)
}

type noneCodec struct{}

func (noneCodec) Name() string { return "none" }

func (noneCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

func (noneCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// CountingWriter counts the bytes passed through to W.
type CountingWriter struct {
	W io.Writer
	N int64
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	n, err := c.W.Write(p)
	c.N += int64(n)
	return n, err
}
