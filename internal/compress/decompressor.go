package compress

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"firestige.xyz/flowzip/internal/codec"
	"firestige.xyz/flowzip/internal/core"
	"firestige.xyz/flowzip/internal/core/decoder"
)

// Output is one reconstructed packet.
type Output struct {
	Seq uint32
	// Packet is shared with the first-packet table for FIRST_PACKET
	// records and must not be modified.
	Packet *core.Packet
	// Raw carries the header bytes with the stored timestamp, the header
	// size as capture length and the length inferred from IP_LEN.
	Raw core.RawPacket
}

// Decompressor rebuilds packets from the three streams.
// It is not safe for concurrent use.
type Decompressor struct {
	diffs   *bufio.Reader
	decoder decoder.Decoder

	timestamps []time.Time
	first      []*core.Packet
	recent     map[uint32]*core.Packet
	seq        uint32
}

// NewDecompressor reads the whole timestamp and first-packet streams
// before returning. First packets are decoded with dec.
func NewDecompressor(ts, first, diffs io.Reader, dec decoder.Decoder) (*Decompressor, error) {
	d := &Decompressor{
		diffs:   bufio.NewReader(diffs),
		decoder: dec,
		recent:  make(map[uint32]*core.Packet),
	}

	var err error
	if d.timestamps, err = readTimestamps(bufio.NewReader(ts)); err != nil {
		return nil, fmt.Errorf("read timestamps: %w", err)
	}
	if err := d.readFirstPackets(bufio.NewReader(first)); err != nil {
		return nil, fmt.Errorf("read first packets: %w", err)
	}
	return d, nil
}

func (d *Decompressor) readFirstPackets(r *bufio.Reader) error {
	for {
		caplen, err := r.ReadByte()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if caplen == firstPacketEnd {
			return nil
		}

		data := make([]byte, caplen)
		if _, err := io.ReadFull(r, data); err != nil {
			return streamErr(fmt.Sprintf("first packet %d", len(d.first)), err)
		}
		pkt, err := d.decoder.Decode(core.RawPacket{Data: data, CaptureLen: uint32(caplen)})
		if err != nil {
			return fmt.Errorf("first packet %d: %w", len(d.first), err)
		}
		d.first = append(d.first, &pkt)
	}
}

// ReadPacket reconstructs the next packet. It returns io.EOF once every
// timestamped packet has been read and the diff stream ends at a record
// boundary.
func (d *Decompressor) ReadPacket() (*Output, error) {
	rec, err := codec.ReadRecord(d.diffs)
	if err != nil {
		if err == io.EOF {
			if int(d.seq) < len(d.timestamps) {
				return nil, fmt.Errorf("%d of %d packets have records: %w", d.seq, len(d.timestamps), core.ErrStreamTruncated)
			}
			return nil, io.EOF
		}
		return nil, fmt.Errorf("packet %d: %w", d.seq, err)
	}

	seq := d.seq
	if int(seq) >= len(d.timestamps) {
		return nil, fmt.Errorf("packet %d has no timestamp: %w", seq, core.ErrStreamTruncated)
	}

	var pkt *core.Packet
	if rec.IsFirst() {
		if int(rec.Ref) >= len(d.first) {
			return nil, fmt.Errorf("packet %d: first packet %d: %w", seq, rec.Ref, core.ErrReferenceMissing)
		}
		pkt = d.first[rec.Ref]
	} else {
		ref, ok := d.recent[rec.Ref]
		if !ok {
			return nil, fmt.Errorf("packet %d: reference %d: %w", seq, rec.Ref, core.ErrReferenceMissing)
		}
		pkt = ref.Clone()
		ApplyRecord(&pkt.Headers, &rec)
		if err := decoder.Pack(pkt); err != nil {
			return nil, fmt.Errorf("packet %d: %w", seq, err)
		}
	}

	d.recent[seq] = pkt
	if !rec.IsFirst() {
		delete(d.recent, rec.Ref)
	}
	d.seq++

	hdr := pkt.HeaderBytes()
	return &Output{
		Seq:    seq,
		Packet: pkt,
		Raw: core.RawPacket{
			Data:       hdr,
			Timestamp:  d.timestamps[seq],
			CaptureLen: uint32(len(hdr)),
			OrigLen:    max(pkt.InferredLen(), uint32(len(hdr))),
		},
	}, nil
}

// Packets returns the number of packets in the trace.
func (d *Decompressor) Packets() int { return len(d.timestamps) }

// FirstPackets returns the number of stored first packets.
func (d *Decompressor) FirstPackets() int { return len(d.first) }

// Pending returns the number of reconstructed packets still referenceable.
func (d *Decompressor) Pending() int { return len(d.recent) }
