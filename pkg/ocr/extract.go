package ocr

import (
	"context"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"stattrack/pkg/logger"
)

// Extractor reads one number per region from a preprocessed screenshot.
type Extractor struct {
	recognizer Recognizer
	upscale    int
	log        *logrus.Entry
}

// NewExtractor wraps rec. Crops are enlarged by upscale before recognition;
// values below 2 disable upscaling.
func NewExtractor(rec Recognizer, upscale int, log *logrus.Entry) *Extractor {
	return &Extractor{
		recognizer: rec,
		upscale:    upscale,
		log:        logger.OrDefault(log, "extractor"),
	}
}

// ExtractField crops region out of img and returns the number it holds, or
// Unrecognized. Recognition problems never surface as errors.
func (e *Extractor) ExtractField(ctx context.Context, img image.Image, region Region) Reading {
	crop := imaging.Crop(img, region.Rect())
	if crop.Bounds().Empty() {
		e.log.WithField("region", region.Name).Warn("region lies outside the image")
		return Unrecognized
	}
	var in image.Image = crop
	if e.upscale > 1 {
		b := crop.Bounds()
		in = imaging.Resize(crop, b.Dx()*e.upscale, b.Dy()*e.upscale, imaging.Lanczos)
	}
	fragments, err := e.recognizer.Recognize(ctx, in)
	if err != nil {
		e.log.WithError(err).WithField("region", region.Name).Debug("recognizer failed")
		return Unrecognized
	}
	r := ParseFragments(fragments)
	if !r.Recognized {
		e.log.WithFields(logrus.Fields{
			"region":    region.Name,
			"fragments": snippet(strings.Join(fragments, "|"), 40),
		}).Debug("unparsable region text")
	}
	return r
}
