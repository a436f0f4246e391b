package ocr

import (
	"fmt"
	"time"
)

// Recognizer backend names accepted by NewRecognizer.
const (
	BackendTesseract    = "tesseract"
	BackendTesseractCLI = "tesseract-cli"
	BackendVision       = "vision"
)

// RecognizerOptions selects and configures a recognizer backend.
type RecognizerOptions struct {
	Backend       string
	Language      string
	TesseractBin  string
	VisionAPIKey  string
	VisionModel   string
	VisionTimeout time.Duration
}

// NewRecognizer builds the configured backend. Callers own the result and
// must Close it.
func NewRecognizer(opts RecognizerOptions) (Recognizer, error) {
	switch opts.Backend {
	case "", BackendTesseract:
		if opts.Language == "" {
			return NewTesseractRecognizer()
		}
		return NewTesseractRecognizer(opts.Language)
	case BackendTesseractCLI:
		return NewCLIRecognizer(opts.TesseractBin, opts.Language)
	case BackendVision:
		return NewVisionRecognizer(opts.VisionAPIKey, opts.VisionModel, opts.VisionTimeout)
	default:
		return nil, fmt.Errorf("unknown recognizer %q", opts.Backend)
	}
}
