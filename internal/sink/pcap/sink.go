// Package pcap writes reconstructed packets to a pcap file.
package pcap

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/flowzip/internal/core"
)

// SnapLen is written to the file header. Reconstructed frames carry
// headers only, so it never truncates anything.
const SnapLen = 65535

// Sink appends frames to a pcap stream.
type Sink struct {
	w       *pcapgo.Writer
	buf     *bufio.Writer
	closer  io.Closer
	packets uint64
}

// Create truncates path and writes the pcap file header.
func Create(path string, linkType layers.LinkType) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	s, err := NewSink(f, linkType)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// NewSink writes the pcap file header to w.
func NewSink(w io.Writer, linkType layers.LinkType) (*Sink, error) {
	buf := bufio.NewWriter(w)
	pw := pcapgo.NewWriter(buf)
	if err := pw.WriteFileHeader(SnapLen, linkType); err != nil {
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}
	return &Sink{w: pw, buf: buf}, nil
}

// Write appends one frame.
func (s *Sink) Write(raw core.RawPacket) error {
	ci := gopacket.CaptureInfo{
		Timestamp:     raw.Timestamp,
		CaptureLength: len(raw.Data),
		Length:        int(raw.OrigLen),
	}
	if ci.Length < ci.CaptureLength {
		ci.Length = ci.CaptureLength
	}
	if err := s.w.WritePacket(ci, raw.Data); err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	s.packets++
	return nil
}

// Packets returns the number of frames written.
func (s *Sink) Packets() uint64 {
	return s.packets
}

// Close flushes buffered frames and closes the file, if any.
func (s *Sink) Close() error {
	err := s.buf.Flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
