// Package sink persists snapshots. Every backend is append-only: rows are
// never updated, and only explicit schema repair touches existing data.
package sink

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"stattrack/pkg/snapshot"
)

// ErrSinkUnavailable wraps every backend failure.
var ErrSinkUnavailable = errors.New("sink unavailable")

// TimestampLayout is how capture times are written to row-oriented sinks.
const TimestampLayout = "2006-01-02 15:04:05"

// Column names that frame the field columns.
const (
	ColumnEntity    = "entity"
	ColumnTimestamp = "timestamp"
)

// Sink is a persistence target for snapshots. Implementations assume a single
// writer.
type Sink interface {
	// EnsureSchema creates the table or header if absent and repairs it if it
	// does not match the configured fields.
	EnsureSchema(ctx context.Context) error
	// Latest returns the most recently appended snapshot for entity, or nil.
	Latest(ctx context.Context, entity string) (*snapshot.Snapshot, error)
	Append(ctx context.Context, s snapshot.Snapshot) error
	// History returns up to limit snapshots for entity, newest first. A
	// non-positive limit returns everything.
	History(ctx context.Context, entity string, limit int) ([]snapshot.Snapshot, error)
	Close() error
}

// Drift describes how a stored schema differs from the configured fields.
type Drift struct {
	Missing []string
	// Header holds the stored header when it differs (row-oriented sinks).
	Header []string
}

// OK reports whether no repair is needed.
func (d Drift) OK() bool { return len(d.Missing) == 0 && d.Header == nil }

// SchemaChecker is implemented by sinks that can report drift without
// changing anything.
type SchemaChecker interface {
	CheckSchema(ctx context.Context) (Drift, error)
}

// Options are shared by all backends.
type Options struct {
	// Fields are the snapshot fields, in column order.
	Fields []string
	// Location is the zone timestamps are rendered in. Defaults to UTC.
	Location *time.Location
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// Columns returns the full header: entity, the fields, timestamp.
func Columns(fields []string) []string {
	out := make([]string, 0, len(fields)+2)
	out = append(out, ColumnEntity)
	out = append(out, fields...)
	return append(out, ColumnTimestamp)
}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func validateFields(fields []string) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: no fields configured", ErrSinkUnavailable)
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if !identRe.MatchString(f) || f == ColumnEntity || f == ColumnTimestamp || f == "id" {
			return fmt.Errorf("%w: invalid field name %q", ErrSinkUnavailable, f)
		}
		if seen[f] {
			return fmt.Errorf("%w: duplicate field %q", ErrSinkUnavailable, f)
		}
		seen[f] = true
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSinkUnavailable, op, err)
}
