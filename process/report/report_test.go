package report

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"stattrack/pkg/logger"
	"stattrack/pkg/ocr"
	"stattrack/pkg/sink"
	"stattrack/pkg/snapshot"
)

func TestRunReport(t *testing.T) {
	ctx := context.Background()
	fields := []string{"military", "trade"}
	s, err := sink.OpenSQLite(":memory:", sink.Options{Fields: fields}, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}
	base := time.Date(2025, 4, 25, 8, 0, 0, 0, time.UTC)
	rows := []map[string]ocr.Reading{
		{"military": ocr.Recognized(100), "trade": ocr.Recognized(50)},
		{"military": ocr.Recognized(180), "trade": ocr.Unrecognized},
	}
	for i, v := range rows {
		if err := s.Append(ctx, snapshot.New("夷國", v, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}

	var out bytes.Buffer
	if err := RunReport(ctx, &out, s, fields, []string{"夷國", "商國"}, 0, true); err != nil {
		t.Fatalf("report: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"Report for entity=夷國:",
		"records=2 first=2025-04-25 08:00:00 last=2025-04-25 09:00:00",
		"latest: military=180 trade=?",
		"change: military=+80",
		"夷國|100|50|2025-04-25 08:00:00",
		"Report for entity=商國:\n  no records",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}
}
