package ocr

import (
	"context"
	"image"
)

// Digits is the only alphabet a recognizer may emit.
const Digits = "0123456789"

// Recognizer reads a single line of digits from an image. Implementations are
// constructed already restricted to Digits and in single-line mode, and return
// the text fragments they detected in detection order.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) ([]string, error)
	Close() error
}
