package sink

import (
	"os"
	"testing"

	"stattrack/pkg/logger"
)

// Postgres tests are opt-in. Set DB_DSN_TEST=1 and DB_DSN to a scratch
// database; the stat_records table is dropped first.
func TestGormSink(t *testing.T) {
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	s, err := OpenPostgres(os.Getenv("DB_DSN"), Options{Fields: testFields, Location: taipei(t)}, true, logger.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.db.Exec("DROP TABLE IF EXISTS stat_records").Error; err != nil {
		t.Fatalf("drop: %v", err)
	}
	exerciseSink(t, s)
}

func TestGormSinkRejectsUnknownField(t *testing.T) {
	if _, err := NewGormSink(nil, Options{Fields: []string{"morale"}}, true, logger.Discard()); err == nil {
		t.Fatalf("expected error for field without a column")
	}
}
