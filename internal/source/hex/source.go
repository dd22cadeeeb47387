// Package hex reads frames written one per line as hexadecimal text.
package hex

import (
	"bufio"
	"bytes"
	"context"
	stdhex "encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket/layers"

	"firestige.xyz/flowzip/internal/core"
)

// Frames carry no capture time; they are stamped this far apart.
const Interval = time.Microsecond

// maxLineLen bounds one line: a jumbo frame as hex plus slack.
const maxLineLen = 2*65536 + 64

// Source streams frames from a hex text trace. Blank lines and lines
// starting with '#' are ignored.
type Source struct {
	name   string
	closer io.Closer
	sc     *bufio.Scanner
	start  time.Time
}

// Open opens a hex trace file.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace %s: %w", path, err)
	}
	s := NewSource(path, f)
	s.closer = f
	return s, nil
}

// NewSource reads frames from r. Timestamps start at the Unix epoch.
func NewSource(name string, r io.Reader) *Source {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineLen)
	return &Source{name: name, sc: sc, start: time.Unix(0, 0).UTC()}
}

// LinkType is always Ethernet.
func (s *Source) LinkType() layers.LinkType {
	return layers.LinkTypeEthernet
}

// Capture decodes each line and sends it to out.
func (s *Source) Capture(ctx context.Context, out chan<- core.RawPacket) error {
	var n, line int
	for s.sc.Scan() {
		line++
		text := bytes.TrimSpace(s.sc.Bytes())
		if len(text) == 0 || text[0] == '#' {
			continue
		}

		data := make([]byte, stdhex.DecodedLen(len(text)))
		if _, err := stdhex.Decode(data, text); err != nil {
			return fmt.Errorf("%s:%d: %w", s.name, line, err)
		}

		raw := core.RawPacket{
			Data:       data,
			Timestamp:  s.start.Add(time.Duration(n) * Interval),
			CaptureLen: uint32(len(data)),
			OrigLen:    uint32(len(data)),
		}
		n++
		select {
		case out <- raw:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := s.sc.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", s.name, err)
	}
	return nil
}

// Close releases the underlying file, if any.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
