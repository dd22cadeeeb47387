package cmd

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"firestige.xyz/flowzip/internal/compress"
	"firestige.xyz/flowzip/internal/pipeline"
)

// printSummary writes the short report shown after compress.
func printSummary(w io.Writer, output string, res *pipeline.CompressResult) {
	m := res.Manifest
	fmt.Fprintf(w, "compressed %d packets in %d flows to %s (%s)\n",
		m.Packets, m.Flows, output, res.Elapsed.Round(time.Millisecond))
	if m.Skipped > 0 || res.Pipeline.Filtered > 0 || res.Pipeline.DecodeErrors > 0 {
		fmt.Fprintf(w, "  skipped %d, filtered %d, undecodable %d\n",
			m.Skipped, res.Pipeline.Filtered, res.Pipeline.DecodeErrors)
	}
	fmt.Fprintf(w, "  input:   %d bytes\n", res.Stats.InputBytes)
	fmt.Fprintf(w, "  encoded: %d bytes\n", m.RawBytes())
	fmt.Fprintf(w, "  stored:  %d bytes (%s)\n", m.StoredBytes(), m.Codec)
	fmt.Fprintf(w, "flowzip compression rate: %.2f%%\n", rate(m.StoredBytes(), int64(res.Stats.InputBytes)))
}

// rate is the stored size as a percentage of the input size.
func rate(stored, input int64) float64 {
	if input == 0 {
		return 0
	}
	return float64(stored) * 100 / float64(input)
}

// printStats writes the detailed per-field report shown by stats.
func printStats(w io.Writer, res *pipeline.CompressResult) {
	s := &res.Stats
	m := res.Manifest

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "packets\t%d\n", s.Packets)
	fmt.Fprintf(tw, "flows\t%d\n", s.Flows)
	fmt.Fprintf(tw, "skipped\t%d\n", s.Skipped)
	fmt.Fprintf(tw, "zero-change packets\t%d\n", s.ZeroChange)
	fmt.Fprintf(tw, "non-one IP_ID deltas\t%d\n", s.NonOneIPID)
	fmt.Fprintf(tw, "descriptor bytes\t%d\n", s.DescriptorBytes)
	fmt.Fprintf(tw, "header bits/packet\t%.2f\n", s.HeaderBitsPerPacket())
	fmt.Fprintf(tw, "encoded bits/packet\t%.2f\n", s.BitsPerPacket())
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "STREAM\tENCODED\tSTORED (%s)\n", m.Codec)
	fmt.Fprintf(tw, "timestamps\t%d\t%d\n", m.Timestamps.RawBytes, m.Timestamps.StoredBytes)
	fmt.Fprintf(tw, "first packets\t%d\t%d\n", m.FirstPackets.RawBytes, m.FirstPackets.StoredBytes)
	fmt.Fprintf(tw, "diffs\t%d\t%d\n", m.Diffs.RawBytes, m.Diffs.StoredBytes)
	fmt.Fprintf(tw, "total\t%d\t%d\n", m.RawBytes(), m.StoredBytes())
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "FIELD\tCHANGES\tBYTES")
	for _, f := range sortedFields(s) {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", f.name, f.Changes, f.Bytes)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "CHANGES\tPACKETS")
	for n, count := range s.ChangesPerPacket {
		if count > 0 {
			fmt.Fprintf(tw, "%d\t%d\n", n, count)
		}
	}
	tw.Flush()

	fmt.Fprintf(w, "\nflowzip compression rate: %.2f%%\n", rate(m.StoredBytes(), int64(s.InputBytes)))
}

type namedField struct {
	name string
	compress.FieldStats
}

// sortedFields orders fields by change count, most frequent first.
func sortedFields(s *compress.Stats) []namedField {
	out := make([]namedField, 0, len(s.Fields))
	for name, fs := range s.Fields {
		out = append(out, namedField{name: name, FieldStats: fs})
	}
	slices.SortFunc(out, func(a, b namedField) int {
		if c := cmp.Compare(b.Changes, a.Changes); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})
	return out
}
