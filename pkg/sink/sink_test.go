package sink

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stattrack/pkg/logger"
	"stattrack/pkg/ocr"
	"stattrack/pkg/snapshot"
)

var testFields = []string{"military", "trade", "tech", "culture"}

func taipei(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Taipei")
	if err != nil {
		t.Skipf("zoneinfo unavailable: %v", err)
	}
	return loc
}

func sample(entity string, military int, at time.Time) snapshot.Snapshot {
	return snapshot.New(entity, map[string]ocr.Reading{
		"military": ocr.Recognized(military),
		"trade":    ocr.Recognized(0),
		"tech":     ocr.Unrecognized,
		"culture":  ocr.Recognized(77),
	}, at)
}

// exerciseSink runs the behaviour every backend must share.
func exerciseSink(t *testing.T, s Sink) {
	t.Helper()
	ctx := context.Background()
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema is not idempotent: %v", err)
	}
	last, err := s.Latest(ctx, "夷國")
	if err != nil || last != nil {
		t.Fatalf("expected no history, got %+v err=%v", last, err)
	}

	base := time.Date(2025, 4, 25, 4, 0, 0, 0, time.UTC)
	for i, v := range []int{100, 150, 160} {
		if err := s.Append(ctx, sample("夷國", v, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := s.Append(ctx, sample("商國", 9, base)); err != nil {
		t.Fatalf("append: %v", err)
	}

	last, err = s.Latest(ctx, "夷國")
	if err != nil || last == nil {
		t.Fatalf("latest: %+v err=%v", last, err)
	}
	if r, _ := last.Get("military"); r != ocr.Recognized(160) {
		t.Fatalf("latest military = %+v", r)
	}
	if r, _ := last.Get("trade"); r != ocr.Recognized(0) {
		t.Fatalf("zero must survive a round trip, got %+v", r)
	}
	if r, ok := last.Get("tech"); !ok || r.Recognized {
		t.Fatalf("unrecognized must survive a round trip, got %+v ok=%v", r, ok)
	}
	if !last.CapturedAt.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("captured at = %v", last.CapturedAt)
	}

	hist, err := s.History(ctx, "夷國", 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(hist))
	}
	if r, _ := hist[1].Get("military"); r != ocr.Recognized(150) {
		t.Fatalf("history not newest first: %+v", hist)
	}
	all, _ := s.History(ctx, "夷國", 0)
	if len(all) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(all))
	}

	// A row appended later wins even when its clock ran behind.
	if err := s.Append(ctx, sample("商國", 10, base.Add(-time.Hour))); err != nil {
		t.Fatalf("append: %v", err)
	}
	last, err = s.Latest(ctx, "商國")
	if err != nil || last == nil {
		t.Fatalf("latest: %+v err=%v", last, err)
	}
	if r, _ := last.Get("military"); r != ocr.Recognized(10) {
		t.Fatalf("latest should follow append order, got military %+v", r)
	}
}

func TestCSVSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheet", "stats.csv")
	s, err := NewCSVSink(path, Options{Fields: testFields, Location: taipei(t)}, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	exerciseSink(t, s)

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "entity,military,trade,tech,culture,timestamp" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if lines[1] != "夷國,100,0,,77,2025-04-25 12:00:00" {
		t.Fatalf("unexpected first row %q", lines[1])
	}
}

func TestCSVSinkRepairsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.csv")
	old := "entity,trade,military,timestamp\n夷國,5,100,2025-04-25 12:00:00\n"
	if err := os.WriteFile(path, []byte(old), 0o644); err != nil {
		t.Fatal(err)
	}
	s, _ := NewCSVSink(path, Options{Fields: testFields, Location: taipei(t)}, logger.Discard())
	ctx := context.Background()

	drift, err := s.CheckSchema(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if drift.OK() || len(drift.Missing) != 2 {
		t.Fatalf("expected tech and culture missing, got %+v", drift)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("repair: %v", err)
	}
	data, _ := os.ReadFile(path)
	want := "entity,military,trade,tech,culture,timestamp\n夷國,100,5,,,2025-04-25 12:00:00\n"
	if string(data) != want {
		t.Fatalf("repaired sheet:\n%s\nwant:\n%s", data, want)
	}
	if drift, _ := s.CheckSchema(ctx); !drift.OK() {
		t.Fatalf("drift after repair: %+v", drift)
	}
}

func TestCSVSinkHeaderlessSheetKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.csv")
	old := "夷國,100,5,,77,2025-04-25 12:00:00\n商國,200,6,,78,2025-04-25 12:00:00\n"
	if err := os.WriteFile(path, []byte(old), 0o644); err != nil {
		t.Fatal(err)
	}
	s, _ := NewCSVSink(path, Options{Fields: testFields, Location: taipei(t)}, logger.Discard())
	ctx := context.Background()

	drift, err := s.CheckSchema(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if drift.OK() {
		t.Fatal("headerless sheet reported as in sync")
	}
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	data, _ := os.ReadFile(path)
	want := "entity,military,trade,tech,culture,timestamp\n" + old
	if string(data) != want {
		t.Fatalf("sheet after header insert:\n%s\nwant:\n%s", data, want)
	}
	last, err := s.Latest(ctx, "夷國")
	if err != nil || last == nil {
		t.Fatalf("夷國 row lost: %+v err=%v", last, err)
	}
	if r, _ := last.Get("military"); r != ocr.Recognized(100) {
		t.Fatalf("military = %+v", r)
	}
}

func TestCSVSinkAppendWithoutSchema(t *testing.T) {
	s, _ := NewCSVSink(filepath.Join(t.TempDir(), "missing.csv"), Options{Fields: testFields}, logger.Discard())
	err := s.Append(context.Background(), sample("夷國", 1, time.Now()))
	if !errors.Is(err, ErrSinkUnavailable) {
		t.Fatalf("expected ErrSinkUnavailable, got %v", err)
	}
}

func TestSQLiteSink(t *testing.T) {
	s, err := OpenSQLite(":memory:", Options{Fields: testFields, Location: taipei(t)}, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	exerciseSink(t, s)
}

func TestSQLiteSinkAddsColumns(t *testing.T) {
	s, err := OpenSQLite(":memory:", Options{Fields: []string{"military"}}, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, snapshot.New("夷國", map[string]ocr.Reading{"military": ocr.Recognized(3)}, time.Now())); err != nil {
		t.Fatal(err)
	}

	// Same database, wider template.
	s.opts.Fields = []string{"military", "military_lv"}
	drift, err := s.CheckSchema(ctx)
	if err != nil || len(drift.Missing) != 1 || drift.Missing[0] != "military_lv" {
		t.Fatalf("unexpected drift %+v err=%v", drift, err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("repair: %v", err)
	}
	last, err := s.Latest(ctx, "夷國")
	if err != nil || last == nil {
		t.Fatalf("latest after repair: %v", err)
	}
	if r, ok := last.Get("military_lv"); !ok || r.Recognized {
		t.Fatalf("new column should read as unrecognized on old rows, got %+v", r)
	}
}

func TestValidateFields(t *testing.T) {
	for _, bad := range [][]string{nil, {"Military"}, {"a;drop"}, {"timestamp"}, {"x", "x"}} {
		if err := validateFields(bad); !errors.Is(err, ErrSinkUnavailable) {
			t.Errorf("fields %q: expected error, got %v", bad, err)
		}
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(Config{Backend: "sheets"}, Options{Fields: testFields}, nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestColumns(t *testing.T) {
	got := strings.Join(Columns([]string{"a", "b"}), ",")
	if got != "entity,a,b,timestamp" {
		t.Fatalf("got %s", got)
	}
}
