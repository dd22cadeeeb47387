package compress

import (
	"fmt"

	"firestige.xyz/flowzip/internal/codec"
	"firestige.xyz/flowzip/internal/core"
)

// BuildRecord computes the diff record for cur against prev, the previous
// packet of the same flow, whose sequence number is ref. It also reports
// whether an explicit (non +1) IP_ID delta was emitted.
func BuildRecord(prev, cur *core.HeaderValues, ref uint32) (codec.Record, bool, error) {
	if ref > codec.MaxRef {
		return codec.Record{}, false, fmt.Errorf("ref %d: %w", ref, core.ErrRefOverflow)
	}

	rec := codec.Record{Ref: ref}
	nonOneIPID := false
	for id := core.FirstDiffHeader; id < core.NumHeaders; id++ {
		v := cur[id]
		if v == core.Unset {
			continue
		}

		if id.IsDelta() {
			base := prev[id]
			if base == core.Unset {
				base = 0
			}
			delta := id.Mask(v - base)
			if id == core.IPID {
				if delta == 1 && prev[id] != core.Unset {
					continue
				}
				nonOneIPID = true
			}
			// Sequence and ack deltas are emitted even when zero.
			rec.Fields = append(rec.Fields, codec.NewField(id, delta))
			continue
		}

		if v == prev[id] {
			continue
		}
		rec.Fields = append(rec.Fields, codec.NewField(id, id.Mask(v)))
	}

	if len(rec.Fields) > codec.MaxChanges {
		return codec.Record{}, false, fmt.Errorf("%d fields changed: %w", len(rec.Fields), core.ErrTooManyChanges)
	}
	rec.Changes = uint8(len(rec.Fields))
	return rec, nonOneIPID, nil
}

// ApplyRecord replays rec onto h, the header values of the reference packet.
func ApplyRecord(h *core.HeaderValues, rec *codec.Record) {
	sawIPID := false
	for _, f := range rec.Fields {
		if !f.ID.Valid() {
			continue
		}
		if f.ID.IsDelta() {
			base := h[f.ID]
			if base == core.Unset {
				base = 0
			}
			h[f.ID] = f.ID.Mask(base + f.Value)
			if f.ID == core.IPID {
				sawIPID = true
			}
			continue
		}
		h[f.ID] = f.Value
	}

	if !sawIPID && h.IsSet(core.IPID) {
		h[core.IPID] = core.IPID.Mask(h[core.IPID] + 1)
	}
}
