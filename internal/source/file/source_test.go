package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/flowzip/internal/core"
)

var frames = [][]byte{
	{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x08, 0x00},
	{0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18, 0x19, 0x1a, 0x1b, 0x08, 0x06, 0xff},
}

var base = time.Unix(1700000000, 0).UTC()

func captureInfo(i int, data []byte) gopacket.CaptureInfo {
	return gopacket.CaptureInfo{
		Timestamp:     base.Add(time.Duration(i) * time.Millisecond),
		CaptureLength: len(data),
		Length:        len(data) + 100,
	}
}

func writePcap(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65535, layers.LinkTypeEthernet))
	for i, data := range frames {
		require.NoError(t, w.WritePacket(captureInfo(i, data), data))
	}
}

func writePcapng(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := pcapgo.NewNgWriter(f, layers.LinkTypeEthernet)
	require.NoError(t, err)
	for i, data := range frames {
		require.NoError(t, w.WritePacket(captureInfo(i, data), data))
	}
	require.NoError(t, w.Flush())
}

func collect(t *testing.T, s *Source) []core.RawPacket {
	t.Helper()
	out := make(chan core.RawPacket, 16)
	require.NoError(t, s.Capture(context.Background(), out))
	close(out)

	var pkts []core.RawPacket
	for p := range out {
		pkts = append(pkts, p)
	}
	return pkts
}

func TestSourceFormats(t *testing.T) {
	tests := []struct {
		name  string
		write func(*testing.T, string)
	}{
		{"pcap", writePcap},
		{"pcapng", writePcapng},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "trace."+tt.name)
			tt.write(t, path)

			s, err := Open(path)
			require.NoError(t, err)
			defer s.Close()
			assert.Equal(t, layers.LinkTypeEthernet, s.LinkType())

			pkts := collect(t, s)
			require.Len(t, pkts, len(frames))
			for i, p := range pkts {
				assert.Equal(t, frames[i], p.Data)
				assert.Equal(t, uint32(len(frames[i])), p.CaptureLen)
				assert.Equal(t, uint32(len(frames[i])+100), p.OrigLen)
				assert.True(t, captureInfo(i, frames[i]).Timestamp.Equal(p.Timestamp))
			}
		})
	}
}

func TestSourceCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.pcap")
	writePcap(t, path)

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.Capture(ctx, make(chan core.RawPacket))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.pcap"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "junk.pcap")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a capture file"), 0o644))
	_, err = Open(path)
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.pcap")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = Open(empty)
	assert.Error(t, err)
}
