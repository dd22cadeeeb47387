package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"firestige.xyz/flowzip/internal/core"
)

const (
	// FirstPacket is the change count marking a flow's first packet.
	// Its Ref indexes the first-packet stream and no fields follow.
	FirstPacket uint8 = 0xF

	// MaxChanges is the largest change count a diff record can carry.
	MaxChanges = 14

	// MaxRef is the largest packet reference that fits in 28 bits.
	MaxRef = 1<<28 - 1

	// MaxRecordSize bounds the serialized size of one record.
	MaxRecordSize = 100

	recordHeaderLen = 4
	changesShift    = 28
	fieldIDMask     = 0x3F
	fieldLenShift   = 6
)

// Field is one changed header value inside a Record.
type Field struct {
	ID    core.HeaderID
	Len   uint8 // 1..4 value bytes
	Value uint32
}

// NewField picks the shortest length that preserves v.
func NewField(id core.HeaderID, v uint32) Field {
	return Field{ID: id, Len: uint8(VarintLen(v)), Value: v}
}

// Record is the serialized unit describing one packet.
type Record struct {
	Ref     uint32
	Changes uint8
	Fields  []Field
}

// NewFirstRecord returns the record for a flow's first packet stored at
// index ref of the first-packet stream.
func NewFirstRecord(ref uint32) Record {
	return Record{Ref: ref, Changes: FirstPacket}
}

// IsFirst reports whether r refers to a stored first packet.
func (r *Record) IsFirst() bool {
	return r.Changes == FirstPacket
}

// Size returns the number of bytes AppendBinary writes for r.
func (r *Record) Size() int {
	n := recordHeaderLen
	for _, f := range r.Fields {
		n += 1 + int(f.Len)
	}
	return n
}

// Validate checks the record invariants.
func (r *Record) Validate() error {
	if r.Ref > MaxRef {
		return fmt.Errorf("ref %d: %w", r.Ref, core.ErrRefOverflow)
	}
	if r.IsFirst() {
		if len(r.Fields) != 0 {
			return fmt.Errorf("first-packet record with %d fields: %w", len(r.Fields), core.ErrInvalidRecord)
		}
		return nil
	}
	if r.Changes > MaxChanges {
		return fmt.Errorf("%d changes: %w", r.Changes, core.ErrTooManyChanges)
	}
	if int(r.Changes) != len(r.Fields) {
		return fmt.Errorf("change count %d with %d fields: %w", r.Changes, len(r.Fields), core.ErrInvalidRecord)
	}
	for _, f := range r.Fields {
		if !f.ID.Valid() || f.ID < core.FirstDiffHeader {
			return fmt.Errorf("field id %d: %w", f.ID, core.ErrInvalidRecord)
		}
		if f.Len < 1 || f.Len > MaxVarintLen {
			return fmt.Errorf("field %s length %d: %w", f.ID, f.Len, core.ErrInvalidRecord)
		}
	}
	if r.Size() > MaxRecordSize {
		return fmt.Errorf("record size %d: %w", r.Size(), core.ErrInvalidRecord)
	}
	return nil
}

// AppendBinary appends the wire form of r to dst.
func (r *Record) AppendBinary(dst []byte) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return dst, err
	}
	dst = binary.LittleEndian.AppendUint32(dst, r.Ref|uint32(r.Changes)<<changesShift)
	for _, f := range r.Fields {
		dst = append(dst, byte(f.ID)&fieldIDMask|(f.Len-1)<<fieldLenShift)
		var buf [MaxVarintLen]byte
		for i := 0; i < int(f.Len); i++ {
			buf[i] = byte(f.Value >> (8 * i))
		}
		dst = append(dst, buf[:f.Len]...)
	}
	return dst, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (r *Record) MarshalBinary() ([]byte, error) {
	return r.AppendBinary(make([]byte, 0, r.Size()))
}

// MarshalTo writes r into dst and returns the number of bytes written.
// dst must hold at least r.Size() bytes.
func (r *Record) MarshalTo(dst []byte) (int, error) {
	if len(dst) < r.Size() {
		return 0, io.ErrShortBuffer
	}
	out, err := r.AppendBinary(dst[:0])
	if err != nil {
		return 0, err
	}
	return len(out), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *Record) UnmarshalBinary(data []byte) error {
	rec, err := ReadRecord(bytes.NewReader(data))
	if err != nil {
		if err == io.EOF {
			return fmt.Errorf("empty input: %w", core.ErrStreamTruncated)
		}
		return err
	}
	*r = rec
	return nil
}

// ReadRecord reads one record. It returns io.EOF only when r is exhausted
// exactly at a record boundary; a partial record yields ErrStreamTruncated.
func ReadRecord(r io.Reader) (Record, error) {
	var hdr [recordHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, truncated("record header", err)
	}

	word := binary.LittleEndian.Uint32(hdr[:])
	rec := Record{
		Ref:     word & MaxRef,
		Changes: uint8(word >> changesShift),
	}
	if rec.IsFirst() {
		return rec, nil
	}

	rec.Fields = make([]Field, 0, rec.Changes)
	var buf [1 + MaxVarintLen]byte
	for i := 0; i < int(rec.Changes); i++ {
		if _, err := io.ReadFull(r, buf[:1]); err != nil {
			return Record{}, truncated("field header", err)
		}
		id := core.HeaderID(buf[0] & fieldIDMask)
		n := buf[0]>>fieldLenShift + 1
		if !id.Valid() {
			return Record{}, fmt.Errorf("field id %d: %w", id, core.ErrInvalidRecord)
		}
		if _, err := io.ReadFull(r, buf[1:1+n]); err != nil {
			return Record{}, truncated("field value", err)
		}
		rec.Fields = append(rec.Fields, Field{ID: id, Len: n, Value: Varint(buf[1 : 1+n])})
	}
	return rec, nil
}

func truncated(what string, err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%s: %w", what, core.ErrStreamTruncated)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// String renders r the way `flowzip inspect` prints it.
func (r Record) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "DiffRecord <ref: %d, nchg: %d> {", r.Ref, r.Changes)
	for i, f := range r.Fields {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, " %s: 0x%x", f.ID, f.Value)
	}
	sb.WriteString(" }")
	return sb.String()
}
