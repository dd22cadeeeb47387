// Package source opens packet traces by file type.
package source

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/google/gopacket/layers"

	"firestige.xyz/flowzip/internal/core"
	"firestige.xyz/flowzip/internal/source/file"
	"firestige.xyz/flowzip/internal/source/hex"
)

// Source produces the raw frames of a trace in capture order.
type Source interface {
	// Capture blocks until the trace is exhausted, ctx is cancelled or a
	// read fails. It does not close out.
	Capture(ctx context.Context, out chan<- core.RawPacket) error
	LinkType() layers.LinkType
	Close() error
}

// hexExtensions select the hex text reader; anything else is read as pcap.
var hexExtensions = map[string]bool{
	".hex": true,
	".ns":  true,
	".txt": true,
}

// Open returns a source for path, choosing the reader by extension.
func Open(path string) (Source, error) {
	if hexExtensions[strings.ToLower(filepath.Ext(path))] {
		s, err := hex.Open(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := file.Open(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}
