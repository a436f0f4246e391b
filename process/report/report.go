package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"stattrack/pkg/sink"
	"stattrack/pkg/snapshot"
)

// RunReport prints, for each entity, how many rows the sink holds (up to
// limit), the latest readings and how each field moved across those rows.
// With list set every row is printed, newest first.
func RunReport(ctx context.Context, w io.Writer, s sink.Sink, fields, entities []string, limit int, list bool) error {
	for _, entity := range entities {
		hist, err := s.History(ctx, entity, limit)
		if err != nil {
			return fmt.Errorf("history %s: %w", entity, err)
		}
		fmt.Fprintf(w, "Report for entity=%s:\n", entity)
		if len(hist) == 0 {
			fmt.Fprintln(w, "  no records")
			continue
		}
		newest, oldest := hist[0], hist[len(hist)-1]
		fmt.Fprintf(w, "  records=%d first=%s last=%s\n", len(hist),
			oldest.CapturedAt.Format(sink.TimestampLayout), newest.CapturedAt.Format(sink.TimestampLayout))
		fmt.Fprintf(w, "  latest: %s\n", formatValues(newest, fields, " "))
		if changes := Changes(oldest, newest, fields); len(changes) > 0 {
			fmt.Fprintf(w, "  change: %s\n", strings.Join(changes, " "))
		}
		if list {
			for _, h := range hist {
				fmt.Fprintf(w, "%s|%s|%s\n", h.Entity, formatValues(h, fields, "|"), h.CapturedAt.Format(sink.TimestampLayout))
			}
		}
	}
	return nil
}

func formatValues(s snapshot.Snapshot, fields []string, sep string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		r, _ := s.Get(f)
		v := r.String()
		if v == "" {
			v = "?"
		}
		if sep == " " {
			v = f + "=" + v
		}
		parts[i] = v
	}
	return strings.Join(parts, sep)
}

// Changes lists field deltas from oldest to newest as "field=+n", skipping
// fields that did not move or were not readable on either side.
func Changes(oldest, newest snapshot.Snapshot, fields []string) []string {
	var out []string
	for _, f := range fields {
		a, okA := oldest.Get(f)
		b, okB := newest.Get(f)
		if !okA || !okB || !a.Recognized || !b.Recognized || a.Value == b.Value {
			continue
		}
		out = append(out, fmt.Sprintf("%s=%+d", f, b.Value-a.Value))
	}
	return out
}
