package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// DefaultThreshold is the global binarization threshold used when a template
// does not set one.
const DefaultThreshold = 128

// PreprocessOptions controls how a screenshot is binarized before extraction.
type PreprocessOptions struct {
	Threshold uint8
	// MaxChannel makes a pixel bright when any of its RGB channels reaches
	// Threshold, instead of comparing the luma intensity.
	MaxChannel bool
}

// DefaultPreprocessOptions returns luma thresholding at DefaultThreshold.
func DefaultPreprocessOptions() PreprocessOptions {
	return PreprocessOptions{Threshold: DefaultThreshold}
}

// Preprocess decodes raw screenshot bytes and binarizes them. Decode failures
// wrap ErrImageDecode.
func Preprocess(raw []byte, opts PreprocessOptions) (*image.Gray, error) {
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	return PreprocessImage(img, opts), nil
}

// PreprocessImage binarizes an already decoded image. The result always has
// its origin at (0,0) so region coordinates are relative to the screenshot's
// top-left corner.
func PreprocessImage(img image.Image, opts PreprocessOptions) *image.Gray {
	if opts.MaxChannel {
		return binarizeMaxChannel(img, opts.Threshold)
	}
	return binarize(imaging.Grayscale(img), opts.Threshold)
}

// binarize performs a simple global threshold on a grayscale image.
func binarize(gray *image.NRGBA, threshold uint8) *image.Gray {
	b := gray.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			v := gray.Pix[y*gray.Stride+x*4]
			if v > threshold {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return out
}

// binarizeMaxChannel keeps a pixel bright if any channel is at or above
// threshold. The bound is inclusive, unlike the luma path.
// Game UIs render colored digits that lose contrast under luma conversion.
func binarizeMaxChannel(img image.Image, threshold uint8) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	t := uint32(threshold)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bb, _ := img.At(x, y).RGBA()
			if r>>8 >= t || g>>8 >= t || bb>>8 >= t {
				out.SetGray(x-b.Min.X, y-b.Min.Y, color.Gray{Y: 255})
			}
		}
	}
	return out
}
