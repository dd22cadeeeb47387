// Package compress implements the flow-based delta encoder and decoder.
package compress

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"firestige.xyz/flowzip/internal/codec"
	"firestige.xyz/flowzip/internal/core"
	"firestige.xyz/flowzip/internal/flow"
)

const (
	// MaxSnapLen is the longest first-packet capture; 255 marks end of stream.
	MaxSnapLen = 254
	// MinSnapLen keeps at least the largest Ethernet/IPv4/TCP header without options.
	MinSnapLen = 64

	firstPacketEnd = 255
)

// Config contains compressor configuration.
type Config struct {
	// SnapLen is the number of bytes stored for each flow's first packet.
	// Headers are always stored in full even when longer.
	SnapLen int

	// OnRecord, if set, is called with every diff record written.
	OnRecord func(rec *codec.Record)
}

// Compressor turns a packet sequence into the timestamp, first-packet and
// diff streams. It is not safe for concurrent use.
type Compressor struct {
	snapLen  int
	onRecord func(rec *codec.Record)

	ts    *bufio.Writer
	first *bufio.Writer
	diffs *bufio.Writer

	tracker    *flow.Tracker
	seq        uint32
	firstCount uint32
	lastTS     time.Time
	stats      Stats

	buf []byte
}

// NewCompressor creates a compressor writing to the three streams.
func NewCompressor(ts, first, diffs io.Writer, cfg Config) *Compressor {
	snapLen := cfg.SnapLen
	if snapLen == 0 || snapLen > MaxSnapLen {
		snapLen = MaxSnapLen
	}
	if snapLen < MinSnapLen {
		snapLen = MinSnapLen
	}
	return &Compressor{
		snapLen:  snapLen,
		onRecord: cfg.OnRecord,
		ts:       bufio.NewWriter(ts),
		first:    bufio.NewWriter(first),
		diffs:    bufio.NewWriter(diffs),
		tracker:  flow.NewTracker(),
		stats:    newStats(),
		buf:      make([]byte, 0, codec.MaxRecordSize),
	}
}

// Compress appends one packet. Packets must arrive in capture order.
//
// ErrTimestampOverflow, ErrTooManyChanges and ErrRefOverflow are returned
// before any state changes, so the caller may skip the packet and continue.
func (c *Compressor) Compress(p *core.Packet) error {
	seq := c.seq
	if seq > codec.MaxRef {
		return fmt.Errorf("sequence %d: %w", seq, core.ErrRefOverflow)
	}

	var delta uint32
	if seq > 0 {
		d, err := timestampDelta(c.lastTS, p.Timestamp)
		if err != nil {
			return err
		}
		delta = d
	}

	key := flow.NewKey(p.Tuple)
	var (
		rec        codec.Record
		nonOneIPID bool
	)
	f, exists := c.tracker.Lookup(key)
	if exists {
		var err error
		rec, nonOneIPID, err = BuildRecord(&f.Current, &p.Headers, f.LastSeq)
		if err != nil {
			return fmt.Errorf("flow %s: %w", key, err)
		}
	} else {
		if c.firstCount > codec.MaxRef {
			return fmt.Errorf("first packet %d: %w", c.firstCount, core.ErrRefOverflow)
		}
		rec = codec.NewFirstRecord(c.firstCount)
	}

	if err := c.writeTimestamp(seq, p.Timestamp, delta); err != nil {
		return err
	}
	if !exists {
		if err := c.writeFirstPacket(p); err != nil {
			return err
		}
	}
	if err := c.writeRecord(&rec); err != nil {
		return err
	}

	f, isFirst := c.tracker.Observe(key, p, seq)
	if isFirst {
		f.FirstIndex = c.firstCount
		c.firstCount++
		c.stats.Flows++
		c.stats.FirstPackets++
	} else {
		c.stats.recordDiff(&rec)
		if nonOneIPID {
			c.stats.NonOneIPID++
		}
		if c.onRecord != nil {
			c.onRecord(&rec)
		}
	}

	c.stats.Packets++
	c.stats.DescriptorBytes++
	c.stats.InputBytes += uint64(len(p.Data))
	c.stats.HeaderBytes += uint64(p.Layout.HeaderLen)
	c.lastTS = p.Timestamp
	c.seq++
	return nil
}

func (c *Compressor) writeTimestamp(seq uint32, ts time.Time, delta uint32) error {
	c.buf = c.buf[:0]
	if seq == 0 {
		c.buf = appendAbsTimestamp(c.buf, ts)
	} else {
		c.buf = append(c.buf, byte(delta), byte(delta>>8), byte(delta>>16), byte(delta>>24))
	}
	if _, err := c.ts.Write(c.buf); err != nil {
		return fmt.Errorf("write timestamp: %w", err)
	}
	c.stats.TimestampBytes += uint64(len(c.buf))
	return nil
}

func (c *Compressor) writeFirstPacket(p *core.Packet) error {
	caplen := max(c.snapLen, p.Layout.HeaderLen)
	caplen = min(caplen, len(p.Data), MaxSnapLen)

	if err := c.first.WriteByte(byte(caplen)); err != nil {
		return fmt.Errorf("write first packet: %w", err)
	}
	if _, err := c.first.Write(p.Data[:caplen]); err != nil {
		return fmt.Errorf("write first packet: %w", err)
	}
	c.stats.FirstPacketBytes += uint64(1 + caplen)
	return nil
}

func (c *Compressor) writeRecord(rec *codec.Record) error {
	var err error
	c.buf, err = rec.AppendBinary(c.buf[:0])
	if err != nil {
		return err
	}
	if _, err := c.diffs.Write(c.buf); err != nil {
		return fmt.Errorf("write diff record: %w", err)
	}
	c.stats.DiffBytes += uint64(len(c.buf))
	return nil
}

// Skip counts a packet the caller chose not to compress.
func (c *Compressor) Skip() {
	c.stats.Skipped++
}

// Flush writes buffered stream data to the underlying writers.
func (c *Compressor) Flush() error {
	for _, w := range []*bufio.Writer{c.ts, c.first, c.diffs} {
		if err := w.Flush(); err != nil {
			return fmt.Errorf("flush stream: %w", err)
		}
	}
	return nil
}

// Packets returns the number of packets compressed so far.
func (c *Compressor) Packets() uint32 { return c.seq }

// Flows returns the flow tracker.
func (c *Compressor) Flows() *flow.Tracker { return c.tracker }

// Stats returns a snapshot of the session statistics.
func (c *Compressor) Stats() Stats { return c.stats.Clone() }
