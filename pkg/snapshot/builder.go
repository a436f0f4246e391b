package snapshot

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/sirupsen/logrus"

	"stattrack/pkg/logger"
	"stattrack/pkg/ocr"
)

// Builder extracts every region of a template from a screenshot.
type Builder struct {
	extractor *ocr.Extractor
	opts      ocr.PreprocessOptions
	log       *logrus.Entry
}

// NewBuilder returns a builder that binarizes with opts before extraction.
func NewBuilder(extractor *ocr.Extractor, opts ocr.PreprocessOptions, log *logrus.Entry) *Builder {
	return &Builder{extractor: extractor, opts: opts, log: logger.OrDefault(log, "snapshot")}
}

// Build decodes raw, preprocesses it once and reads every region. Only a
// decode failure is returned as an error (wrapping ErrExtraction and
// ocr.ErrImageDecode); unreadable regions become ocr.Unrecognized.
func (b *Builder) Build(ctx context.Context, raw []byte, entity string, regions []ocr.Region, capturedAt time.Time) (Snapshot, error) {
	bin, err := ocr.Preprocess(raw, b.opts)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %s: %w", ErrExtraction, entity, err)
	}
	return b.extract(ctx, bin, entity, regions, capturedAt), nil
}

// BuildImage is Build for an already decoded screenshot.
func (b *Builder) BuildImage(ctx context.Context, img image.Image, entity string, regions []ocr.Region, capturedAt time.Time) Snapshot {
	return b.extract(ctx, ocr.PreprocessImage(img, b.opts), entity, regions, capturedAt)
}

func (b *Builder) extract(ctx context.Context, bin image.Image, entity string, regions []ocr.Region, capturedAt time.Time) Snapshot {
	values := make(map[string]ocr.Reading, len(regions))
	for _, r := range regions {
		values[r.Name] = b.extractor.ExtractField(ctx, bin, r)
	}
	s := Snapshot{Entity: entity, Values: values, CapturedAt: capturedAt}
	if missing := s.Unrecognized(); len(missing) > 0 {
		b.log.WithFields(logrus.Fields{
			"entity":       entity,
			"unrecognized": missing,
		}).Warn("some regions could not be read")
	}
	return s
}
