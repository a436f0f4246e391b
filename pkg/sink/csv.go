package sink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"stattrack/pkg/logger"
	"stattrack/pkg/ocr"
	"stattrack/pkg/snapshot"
)

// CSVSink appends rows to a spreadsheet-style CSV file whose first row is
// the header.
type CSVSink struct {
	mu   sync.Mutex
	path string
	opts Options
	log  *logrus.Entry
}

// NewCSVSink returns a sink writing to path. The file is created by
// EnsureSchema.
func NewCSVSink(path string, opts Options, log *logrus.Entry) (*CSVSink, error) {
	if err := validateFields(opts.Fields); err != nil {
		return nil, err
	}
	return &CSVSink{path: path, opts: opts, log: logger.OrDefault(log, "csv-sink")}, nil
}

func (c *CSVSink) readAll() ([][]string, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

// EnsureSchema implements Sink. A mismatched header is rewritten and the
// existing rows are remapped onto the new columns by name.
func (c *CSVSink) EnsureSchema(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	want := Columns(c.opts.Fields)
	rows, err := c.readAll()
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(rows) == 0) {
		if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
			return unavailable("csv mkdir", err)
		}
		if err := c.rewrite([][]string{want}); err != nil {
			return unavailable("csv write header", err)
		}
		c.log.WithField("path", c.path).Info("created sheet with header")
		return nil
	}
	if err != nil {
		return unavailable("csv read", err)
	}
	if slices.Equal(rows[0], want) {
		return nil
	}
	if !isHeader(rows[0]) {
		if err := c.rewrite(append([][]string{want}, rows...)); err != nil {
			return unavailable("csv write header", err)
		}
		c.log.WithFields(logrus.Fields{"path": c.path, "rows": len(rows)}).Warn("sheet had no header; header inserted")
		return nil
	}
	repaired := remapRows(rows[0], rows[1:], want)
	if err := c.rewrite(append([][]string{want}, repaired...)); err != nil {
		return unavailable("csv rewrite header", err)
	}
	c.log.WithFields(logrus.Fields{
		"path": c.path,
		"old":  rows[0],
		"new":  want,
		"rows": len(repaired),
	}).Warn("sheet header did not match; rewritten")
	return nil
}

// CheckSchema implements SchemaChecker.
func (c *CSVSink) CheckSchema(ctx context.Context) (Drift, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	want := Columns(c.opts.Fields)
	rows, err := c.readAll()
	if errors.Is(err, os.ErrNotExist) {
		return Drift{Missing: want}, nil
	}
	if err != nil {
		return Drift{}, unavailable("csv read", err)
	}
	if len(rows) == 0 || !isHeader(rows[0]) {
		return Drift{Missing: want}, nil
	}
	if slices.Equal(rows[0], want) {
		return Drift{}, nil
	}
	have := make(map[string]bool, len(rows[0]))
	for _, h := range rows[0] {
		have[h] = true
	}
	d := Drift{Header: rows[0]}
	for _, w := range want {
		if !have[w] {
			d.Missing = append(d.Missing, w)
		}
	}
	return d, nil
}

// isHeader reports whether row looks like a header rather than a data row.
func isHeader(row []string) bool {
	return slices.Contains(row, ColumnEntity) || slices.Contains(row, ColumnTimestamp)
}

// rewrite replaces the file atomically.
func (c *CSVSink) rewrite(rows [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".sheet-*.csv")
	if err != nil {
		return err
	}
	w := csv.NewWriter(tmp)
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.path)
}

// remapRows moves cells from the old layout to want by column name. When the
// old header has no recognizable column the rows are kept positionally.
func remapRows(old []string, rows [][]string, want []string) [][]string {
	index := make(map[string]int, len(old))
	for i, h := range old {
		index[h] = i
	}
	byName := false
	for _, w := range want {
		if _, ok := index[w]; ok {
			byName = true
			break
		}
	}
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		next := make([]string, len(want))
		for j, w := range want {
			src := j
			if byName {
				i, ok := index[w]
				if !ok {
					continue
				}
				src = i
			}
			if src < len(row) {
				next[j] = row[src]
			}
		}
		out = append(out, next)
	}
	return out
}

// Append implements Sink.
func (c *CSVSink) Append(ctx context.Context, s snapshot.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := os.OpenFile(c.path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return unavailable("csv open", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(c.row(s)); err != nil {
		f.Close()
		return unavailable("csv append", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return unavailable("csv append", err)
	}
	if err := f.Close(); err != nil {
		return unavailable("csv close", err)
	}
	return nil
}

func (c *CSVSink) row(s snapshot.Snapshot) []string {
	row := make([]string, 0, len(c.opts.Fields)+2)
	row = append(row, s.Entity)
	for _, f := range c.opts.Fields {
		r, _ := s.Get(f)
		row = append(row, r.String())
	}
	return append(row, s.CapturedAt.In(c.opts.location()).Format(TimestampLayout))
}

func (c *CSVSink) parse(row []string) snapshot.Snapshot {
	values := make(map[string]ocr.Reading, len(c.opts.Fields))
	for i, f := range c.opts.Fields {
		cell := ""
		if i+1 < len(row) {
			cell = row[i+1]
		}
		r, err := ocr.ParseReading(cell)
		if err != nil {
			c.log.WithFields(logrus.Fields{"field": f, "cell": cell}).Debug("non-numeric cell read as unrecognized")
		}
		values[f] = r
	}
	var at time.Time
	if len(row) == len(c.opts.Fields)+2 {
		at, _ = time.ParseInLocation(TimestampLayout, row[len(row)-1], c.opts.location())
	}
	return snapshot.Snapshot{Entity: row[0], Values: values, CapturedAt: at}
}

// scan calls fn for every data row of entity, newest first, until fn
// returns false.
func (c *CSVSink) scan(entity string, fn func(snapshot.Snapshot) bool) error {
	c.mu.Lock()
	rows, err := c.readAll()
	c.mu.Unlock()
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return unavailable("csv read", err)
	}
	for i := len(rows) - 1; i >= 1; i-- {
		if len(rows[i]) == 0 || rows[i][0] != entity {
			continue
		}
		if !fn(c.parse(rows[i])) {
			return nil
		}
	}
	return nil
}

// Latest implements Sink.
func (c *CSVSink) Latest(ctx context.Context, entity string) (*snapshot.Snapshot, error) {
	var last *snapshot.Snapshot
	err := c.scan(entity, func(s snapshot.Snapshot) bool {
		last = &s
		return false
	})
	return last, err
}

// History implements Sink.
func (c *CSVSink) History(ctx context.Context, entity string, limit int) ([]snapshot.Snapshot, error) {
	var out []snapshot.Snapshot
	err := c.scan(entity, func(s snapshot.Snapshot) bool {
		out = append(out, s)
		return limit <= 0 || len(out) < limit
	})
	return out, err
}

// Close implements Sink.
func (c *CSVSink) Close() error { return nil }

var (
	_ Sink          = (*CSVSink)(nil)
	_ SchemaChecker = (*CSVSink)(nil)
)

func (c *CSVSink) String() string { return fmt.Sprintf("csv:%s", c.path) }
