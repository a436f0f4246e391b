package snapshot

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"stattrack/pkg/logger"
	"stattrack/pkg/ocr"
)

// regionRecognizer answers by crop width so each region gets its own value.
type regionRecognizer struct {
	byWidth map[int][]string
}

func (r regionRecognizer) Recognize(_ context.Context, img image.Image) ([]string, error) {
	return r.byWidth[img.Bounds().Dx()], nil
}

func (regionRecognizer) Close() error { return nil }

func testBuilder() *Builder {
	rec := regionRecognizer{byWidth: map[int][]string{10: {"42"}, 20: {"1", "7"}}}
	return NewBuilder(ocr.NewExtractor(rec, 1, logger.Discard()), ocr.DefaultPreprocessOptions(), logger.Discard())
}

var testRegions = []ocr.Region{
	{Name: "military", X: 0, Y: 0, Width: 10, Height: 5},
	{Name: "trade", X: 0, Y: 10, Width: 20, Height: 5},
	{Name: "tech", X: 0, Y: 20, Width: 30, Height: 5},
}

func TestBuild(t *testing.T) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(40, 40, color.White), imaging.PNG); err != nil {
		t.Fatal(err)
	}
	at := time.Now()
	s, err := testBuilder().Build(context.Background(), buf.Bytes(), "商國", testRegions, at)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if s.Entity != "商國" || !s.CapturedAt.Equal(at) {
		t.Fatalf("unexpected snapshot header %+v", s)
	}
	if r, _ := s.Get("military"); r != ocr.Recognized(42) {
		t.Errorf("military = %+v", r)
	}
	if r, _ := s.Get("trade"); r != ocr.Recognized(17) {
		t.Errorf("trade = %+v", r)
	}
	r, ok := s.Get("tech")
	if !ok || r.Recognized {
		t.Errorf("tech should be present and unrecognized, got %+v ok=%v", r, ok)
	}
	if _, ok := s.Get("culture"); ok {
		t.Errorf("culture was never requested")
	}
	if u := s.Unrecognized(); len(u) != 1 || u[0] != "tech" {
		t.Errorf("unrecognized = %v", u)
	}
}

func TestBuildDecodeFailure(t *testing.T) {
	_, err := testBuilder().Build(context.Background(), []byte{0xFF, 0x00}, "商國", testRegions, time.Now())
	if !errors.Is(err, ErrExtraction) || !errors.Is(err, ocr.ErrImageDecode) {
		t.Fatalf("expected ErrExtraction and ErrImageDecode, got %v", err)
	}
}

func TestBuildImage(t *testing.T) {
	s := testBuilder().BuildImage(context.Background(), imaging.New(40, 40, color.Black), "商國", testRegions[:1], time.Now())
	if r, _ := s.Get("military"); r != ocr.Recognized(42) {
		t.Fatalf("military = %+v", r)
	}
}

func TestNewCopiesValues(t *testing.T) {
	vals := map[string]ocr.Reading{"military": ocr.Recognized(1)}
	s := New("x", vals, time.Time{})
	vals["military"] = ocr.Recognized(2)
	if r, _ := s.Get("military"); r.Value != 1 {
		t.Fatalf("snapshot shares caller map")
	}
}
