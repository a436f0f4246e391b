// Package snapshot turns one screenshot into a set of readings and decides
// whether it is worth persisting.
package snapshot

import (
	"errors"
	"sort"
	"time"

	"stattrack/pkg/ocr"
)

// ErrExtraction wraps failures that prevent a snapshot from being built.
var ErrExtraction = errors.New("snapshot extraction failed")

// Snapshot is one cycle's readings for one entity. Treat it as immutable once
// built; Values is keyed by region name.
type Snapshot struct {
	Entity     string
	Values     map[string]ocr.Reading
	CapturedAt time.Time
}

// New returns a snapshot with a copy of values.
func New(entity string, values map[string]ocr.Reading, capturedAt time.Time) Snapshot {
	cp := make(map[string]ocr.Reading, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Snapshot{Entity: entity, Values: cp, CapturedAt: capturedAt}
}

// Get returns the reading for field. ok is false when the field is absent,
// which is different from a present but Unrecognized reading.
func (s Snapshot) Get(field string) (ocr.Reading, bool) {
	r, ok := s.Values[field]
	return r, ok
}

// Unrecognized lists the fields that are present but could not be read,
// sorted by name.
func (s Snapshot) Unrecognized() []string {
	var out []string
	for k, v := range s.Values {
		if !v.Recognized {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
