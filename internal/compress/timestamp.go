package compress

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"firestige.xyz/flowzip/internal/core"
)

const (
	absTimestampLen   = 16
	deltaTimestampLen = 4

	usecPerSec = 1_000_000
)

// appendAbsTimestamp writes seconds and microseconds as two 8-byte words.
func appendAbsTimestamp(dst []byte, ts time.Time) []byte {
	usec := ts.UnixMicro()
	sec := usec / usecPerSec
	frac := usec % usecPerSec
	if frac < 0 {
		sec--
		frac += usecPerSec
	}
	dst = binary.LittleEndian.AppendUint64(dst, uint64(sec))
	return binary.LittleEndian.AppendUint64(dst, uint64(frac))
}

// timestampDelta returns the microsecond gap between prev and ts.
func timestampDelta(prev, ts time.Time) (uint32, error) {
	delta := ts.UnixMicro() - prev.UnixMicro()
	if delta < 0 || delta > math.MaxUint32 {
		return 0, fmt.Errorf("delta %dus: %w", delta, core.ErrTimestampOverflow)
	}
	return uint32(delta), nil
}

// readTimestamps reads the whole timestamp stream. An empty stream yields
// no timestamps.
func readTimestamps(r io.Reader) ([]time.Time, error) {
	var abs [absTimestampLen]byte
	if _, err := io.ReadFull(r, abs[:]); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, streamErr("first timestamp", err)
	}

	sec := int64(binary.LittleEndian.Uint64(abs[0:8]))
	usec := int64(binary.LittleEndian.Uint64(abs[8:16]))
	cur := sec*usecPerSec + usec
	timestamps := []time.Time{time.UnixMicro(cur)}

	var buf [deltaTimestampLen]byte
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			if err == io.EOF {
				return timestamps, nil
			}
			return nil, streamErr("timestamp delta", err)
		}
		cur += int64(binary.LittleEndian.Uint32(buf[:]))
		timestamps = append(timestamps, time.UnixMicro(cur))
	}
}

func streamErr(what string, err error) error {
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return fmt.Errorf("%s: %w", what, core.ErrStreamTruncated)
	}
	return fmt.Errorf("%s: %w", what, err)
}
