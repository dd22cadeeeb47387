package stream

import (
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

type gzipCodec struct {
	level int
}

func newGzipCodec(level int) (Codec, error) {
	if level == 0 {
		level = gzip.DefaultCompression
	}
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		return nil, fmt.Errorf("level %d out of range", level)
	}
	return gzipCodec{level: level}, nil
}

func (gzipCodec) Name() string { return "gzip" }

func (c gzipCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	zw, err := gzip.NewWriterLevel(w, c.level)
	if err != nil {
		return nil, err
	}
	return zw, nil
}

func (gzipCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	return zr, nil
}

type zstdCodec struct {
	level zstd.EncoderLevel
}

func newZstdCodec(level int) (Codec, error) {
	if level == 0 {
		return zstdCodec{level: zstd.SpeedDefault}, nil
	}
	if level < 1 || level > 22 {
		return nil, fmt.Errorf("level %d out of range", level)
	}
	return zstdCodec{level: zstd.EncoderLevelFromZstd(level)}, nil
}

func (zstdCodec) Name() string { return "zstd" }

func (c zstdCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(c.level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return zw, nil
}

func (zstdCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return d.IOReadCloser(), nil
}

type lz4Codec struct {
	level lz4.CompressionLevel
}

var lz4Levels = [...]lz4.CompressionLevel{
	lz4.Fast, lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4,
	lz4.Level5, lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
}

func newLZ4Codec(level int) (Codec, error) {
	if level < 0 || level >= len(lz4Levels) {
		return nil, fmt.Errorf("level %d out of range", level)
	}
	return lz4Codec{level: lz4Levels[level]}, nil
}

func (lz4Codec) Name() string { return "lz4" }

func (c lz4Codec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	zw := lz4.NewWriter(w)
	if err := zw.Apply(lz4.CompressionLevelOption(c.level), lz4.ConcurrencyOption(1)); err != nil {
		return nil, err
	}
	return zw, nil
}

func (lz4Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

type snappyCodec struct{}

func (snappyCodec) Name() string { return "snappy" }

func (snappyCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return snappy.NewBufferedWriter(w), nil
}

func (snappyCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(snappy.NewReader(r)), nil
}

type brotliCodec struct {
	level int
}

func newBrotliCodec(level int) (Codec, error) {
	if level == 0 {
		level = brotli.DefaultCompression
	}
	if level < brotli.BestSpeed || level > brotli.BestCompression {
		return nil, fmt.Errorf("level %d out of range", level)
	}
	return brotliCodec{level: level}, nil
}

func (brotliCodec) Name() string { return "brotli" }

func (c brotliCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return brotli.NewWriterLevel(w, c.level), nil
}

func (brotliCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(brotli.NewReader(r)), nil
}
