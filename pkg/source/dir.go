package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"stattrack/pkg/logger"
)

// DirSource reads screenshots saved in a local directory under the same
// filenames the channel uses.
type DirSource struct {
	dir      string
	entities EntityTable
	log      *logrus.Entry
}

// NewDirSource returns a source over dir.
func NewDirSource(dir string, entities EntityTable, log *logrus.Entry) *DirSource {
	return &DirSource{dir: dir, entities: entities, log: logger.OrDefault(log, "dir-source")}
}

// Fetch implements Source. When several filenames map to one entity the most
// recently modified file wins.
func (d *DirSource) Fetch(ctx context.Context) ([]Image, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read dir %s: %w", ErrSourceUnavailable, d.dir, err)
	}
	type file struct {
		name    string
		entity  string
		modTime time.Time
	}
	var files []file
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		entity, ok := d.entities.Lookup(e.Name())
		if !ok {
			d.log.WithField("filename", e.Name()).Warn("file is not a known entity screenshot; dropped")
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, file{name: e.Name(), entity: entity, modTime: info.ModTime()})
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

	seen := map[string]bool{}
	var out []Image
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if seen[f.entity] {
			continue
		}
		seen[f.entity] = true
		p := filepath.Join(d.dir, f.name)
		img := Image{Entity: f.entity, Filename: f.name, URL: "file://" + p}
		img.Data, img.Err = os.ReadFile(p)
		out = append(out, img)
	}
	return out, nil
}

// Watch calls onChange after known screenshots are created or rewritten,
// once the directory has been quiet for debounce. Calls never overlap. It
// returns when ctx is done or the watcher fails.
func (d *DirSource) Watch(ctx context.Context, debounce time.Duration, onChange func(context.Context) error) error {
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(d.dir); err != nil {
		return err
	}
	d.log.WithField("dir", d.dir).Info("watching for new screenshots (debounced)")

	var last time.Time
	pending := false
	ticker := time.NewTicker(debounce / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if _, known := d.entities.Lookup(filepath.Base(ev.Name)); !known {
				continue
			}
			pending = true
			last = time.Now()
		case <-ticker.C:
			if !pending || time.Since(last) < debounce {
				continue
			}
			pending = false
			if err := onChange(ctx); err != nil {
				d.log.WithError(err).Warn("cycle after directory change failed")
			}
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			d.log.WithError(err).Warn("watch error")
		}
	}
}
