package sink

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Backend names accepted by Open.
const (
	BackendCSV      = "csv"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config selects and locates a backend.
type Config struct {
	Backend     string
	CSVPath     string
	SQLitePath  string
	DSN         string
	AutoMigrate bool
}

// Open returns the configured backend. The schema is not touched; call
// EnsureSchema before the first write.
func Open(cfg Config, opts Options, log *logrus.Entry) (Sink, error) {
	switch cfg.Backend {
	case BackendCSV:
		return NewCSVSink(cfg.CSVPath, opts, log)
	case "", BackendSQLite:
		return OpenSQLite(cfg.SQLitePath, opts, log)
	case BackendPostgres:
		return OpenPostgres(cfg.DSN, opts, cfg.AutoMigrate, log)
	default:
		return nil, fmt.Errorf("%w: unknown sink %q", ErrSinkUnavailable, cfg.Backend)
	}
}
