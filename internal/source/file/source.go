// Package file reads packets from pcap and pcapng trace files.
package file

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/flowzip/internal/core"
)

// pcapngMagic is the block type of a pcapng section header.
const pcapngMagic = 0x0A0D0D0A

// Source streams the frames of one trace file.
type Source struct {
	path     string
	file     *os.File
	reader   gopacket.PacketDataSource
	linkType layers.LinkType
}

// Open detects the file format from its magic number.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace %s: %w", path, err)
	}
	s := &Source{path: path, file: f}

	br := bufio.NewReader(f)
	magic, err := br.Peek(4)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read trace header %s: %w", path, err)
	}

	if binary.LittleEndian.Uint32(magic) == pcapngMagic {
		r, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open pcapng %s: %w", path, err)
		}
		s.reader, s.linkType = r, r.LinkType()
	} else {
		r, err := pcapgo.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open pcap %s: %w", path, err)
		}
		s.reader, s.linkType = r, r.LinkType()
	}
	return s, nil
}

// LinkType returns the link type recorded in the file header.
func (s *Source) LinkType() layers.LinkType {
	return s.linkType
}

// Capture sends every frame to out and returns nil at end of file.
func (s *Source) Capture(ctx context.Context, out chan<- core.RawPacket) error {
	for {
		data, ci, err := s.reader.ReadPacketData()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read packet from %s: %w", s.path, err)
		}

		raw := core.RawPacket{
			Data:       data,
			Timestamp:  ci.Timestamp,
			CaptureLen: uint32(ci.CaptureLength),
			OrigLen:    uint32(ci.Length),
		}
		select {
		case out <- raw:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close releases the file.
func (s *Source) Close() error {
	return s.file.Close()
}
