package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"stattrack/pkg/logger"
	"stattrack/pkg/ocr"
	"stattrack/pkg/snapshot"
)

const sqliteTable = "stat_records"

// SQLiteSink stores one row per snapshot in a local SQLite file. Field
// columns are created from the configured fields, so any calibrated template
// can be stored.
type SQLiteSink struct {
	db   *sql.DB
	opts Options
	log  *logrus.Entry
}

// OpenSQLite opens (creating if needed) the database at path. Use ":memory:"
// in tests.
func OpenSQLite(path string, opts Options, log *logrus.Entry) (*SQLiteSink, error) {
	if err := validateFields(opts.Fields); err != nil {
		return nil, err
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, unavailable("sqlite mkdir", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, unavailable("sqlite open", err)
	}
	// Single writer; also keeps ":memory:" on one database.
	db.SetMaxOpenConns(1)
	pragmas := []string{"PRAGMA busy_timeout = 10000", "PRAGMA synchronous = NORMAL"}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, unavailable(p, err)
		}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, unavailable("sqlite ping", err)
	}
	return &SQLiteSink{db: db, opts: opts, log: logger.OrDefault(log, "sqlite-sink")}, nil
}

func quote(ident string) string { return `"` + ident + `"` }

// EnsureSchema implements Sink. Missing field columns are added in place.
func (s *SQLiteSink) EnsureSchema(ctx context.Context) error {
	cols := make([]string, 0, len(s.opts.Fields)+3)
	cols = append(cols, "id INTEGER PRIMARY KEY AUTOINCREMENT", "entity TEXT NOT NULL")
	for _, f := range s.opts.Fields {
		cols = append(cols, quote(f)+" INTEGER")
	}
	cols = append(cols, "captured_at TEXT NOT NULL")
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", sqliteTable, strings.Join(cols, ", "))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return unavailable("sqlite create table", err)
	}
	if _, err := s.db.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS idx_stat_records_entity ON "+sqliteTable+" (entity, id)"); err != nil {
		return unavailable("sqlite create index", err)
	}
	drift, err := s.CheckSchema(ctx)
	if err != nil {
		return err
	}
	for _, f := range drift.Missing {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s INTEGER", sqliteTable, quote(f))); err != nil {
			return unavailable("sqlite add column "+f, err)
		}
		s.log.WithField("column", f).Warn("added missing column")
	}
	return nil
}

// CheckSchema implements SchemaChecker.
func (s *SQLiteSink) CheckSchema(ctx context.Context) (Drift, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", sqliteTable)
	if err != nil {
		return Drift{}, unavailable("sqlite table info", err)
	}
	defer rows.Close()
	have := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return Drift{}, unavailable("sqlite table info", err)
		}
		have[name] = true
	}
	if err := rows.Err(); err != nil {
		return Drift{}, unavailable("sqlite table info", err)
	}
	var d Drift
	if len(have) == 0 {
		d.Missing = append([]string{}, s.opts.Fields...)
		return d, nil
	}
	for _, f := range s.opts.Fields {
		if !have[f] {
			d.Missing = append(d.Missing, f)
		}
	}
	return d, nil
}

// Append implements Sink.
func (s *SQLiteSink) Append(ctx context.Context, snap snapshot.Snapshot) error {
	cols := make([]string, 0, len(s.opts.Fields)+2)
	args := make([]any, 0, len(s.opts.Fields)+2)
	cols = append(cols, "entity")
	args = append(args, snap.Entity)
	for _, f := range s.opts.Fields {
		cols = append(cols, quote(f))
		r, _ := snap.Get(f)
		if r.Recognized {
			args = append(args, r.Value)
		} else {
			args = append(args, nil)
		}
	}
	cols = append(cols, "captured_at")
	args = append(args, snap.CapturedAt.In(s.opts.location()).Format(TimestampLayout))

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		sqliteTable, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return unavailable("sqlite insert", err)
	}
	return nil
}

func (s *SQLiteSink) query(ctx context.Context, entity string, limit int) ([]snapshot.Snapshot, error) {
	cols := make([]string, 0, len(s.opts.Fields)+1)
	for _, f := range s.opts.Fields {
		cols = append(cols, quote(f))
	}
	cols = append(cols, "captured_at")
	q := fmt.Sprintf("SELECT %s FROM %s WHERE entity = ? ORDER BY id DESC", strings.Join(cols, ", "), sqliteTable)
	args := []any{entity}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, unavailable("sqlite select", err)
	}
	defer rows.Close()

	var out []snapshot.Snapshot
	for rows.Next() {
		vals := make([]sql.NullInt64, len(s.opts.Fields))
		dest := make([]any, 0, len(vals)+1)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		var ts string
		dest = append(dest, &ts)
		if err := rows.Scan(dest...); err != nil {
			return nil, unavailable("sqlite scan", err)
		}
		readings := make(map[string]ocr.Reading, len(vals))
		for i, f := range s.opts.Fields {
			if vals[i].Valid {
				readings[f] = ocr.Recognized(int(vals[i].Int64))
			} else {
				readings[f] = ocr.Unrecognized
			}
		}
		at, err := time.ParseInLocation(TimestampLayout, ts, s.opts.location())
		if err != nil {
			s.log.WithError(err).WithField("captured_at", ts).Debug("unparsable timestamp")
		}
		out = append(out, snapshot.Snapshot{Entity: entity, Values: readings, CapturedAt: at})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("sqlite rows", err)
	}
	return out, nil
}

// Latest implements Sink.
func (s *SQLiteSink) Latest(ctx context.Context, entity string) (*snapshot.Snapshot, error) {
	rows, err := s.query(ctx, entity, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// History implements Sink.
func (s *SQLiteSink) History(ctx context.Context, entity string, limit int) ([]snapshot.Snapshot, error) {
	return s.query(ctx, entity, limit)
}

// Close implements Sink.
func (s *SQLiteSink) Close() error {
	if err := s.db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}

var (
	_ Sink          = (*SQLiteSink)(nil)
	_ SchemaChecker = (*SQLiteSink)(nil)
)
