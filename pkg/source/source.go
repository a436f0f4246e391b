// Package source lists and downloads the latest screenshot per entity.
package source

import (
	"context"
	"errors"
	"net/url"
	"path"
	"strings"
)

var (
	// ErrSourceUnavailable is returned when the listing itself fails. The
	// cycle cannot continue without it.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrLinkExpired marks a download rejected with 403, 404 or 410, which is
	// what signed attachment links return once they expire.
	ErrLinkExpired = errors.New("attachment link expired")
)

// Image is one entity's screenshot for a cycle. Err is set instead of Data
// when the image was listed but could not be retrieved.
type Image struct {
	Entity   string
	Filename string
	URL      string
	Data     []byte
	Err      error
}

// Source yields at most one Image per entity, the most recent one.
type Source interface {
	Fetch(ctx context.Context) ([]Image, error)
}

// EntityTable maps screenshot filenames to entity names.
type EntityTable map[string]string

// Lookup returns the entity for filename.
func (t EntityTable) Lookup(filename string) (string, bool) {
	e, ok := t[filename]
	return e, ok
}

// FilenameFromURL returns the last path segment of raw with any query or
// fragment removed.
func FilenameFromURL(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	return path.Base(raw)
}
