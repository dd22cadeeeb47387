package pipeline

import (
	"firestige.xyz/flowzip/internal/compress"
	"firestige.xyz/flowzip/internal/core/decoder"
	"firestige.xyz/flowzip/internal/filter"
)

// Builder provides a fluent interface for building pipelines.
// This is an alternative to using Config directly.
type Builder struct {
	config Config
}

// NewBuilder creates a new pipeline builder.
func NewBuilder() *Builder {
	return &Builder{
		config: Config{
			BufferSize: 1024, // default
		},
	}
}

// WithCapturer sets the packet source.
func (b *Builder) WithCapturer(c Capturer) *Builder {
	b.config.Capturer = c
	return b
}

// WithDecoder sets the packet decoder.
func (b *Builder) WithDecoder(d decoder.Decoder) *Builder {
	b.config.Decoder = d
	return b
}

// WithFilter sets the frame filter.
func (b *Builder) WithFilter(f *filter.Filter) *Builder {
	b.config.Filter = f
	return b
}

// WithCompressor sets the flow compressor.
func (b *Builder) WithCompressor(c *compress.Compressor) *Builder {
	b.config.Compressor = c
	return b
}

// WithAbortOnError makes unencodable packets fatal instead of skipped.
func (b *Builder) WithAbortOnError(abort bool) *Builder {
	b.config.AbortOnErr = abort
	return b
}

// WithBufferSize sets the raw packet channel buffer size.
func (b *Builder) WithBufferSize(size int) *Builder {
	b.config.BufferSize = size
	return b
}

// Build creates the pipeline.
func (b *Builder) Build() *Pipeline {
	return New(b.config)
}
