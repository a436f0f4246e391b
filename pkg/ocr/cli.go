package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os/exec"
	"strings"
)

// CLIRecognizer shells out to the tesseract binary for every region. It has
// no startup cost and no shared state, at the price of one process per call.
type CLIRecognizer struct {
	Binary   string
	Language string
}

// NewCLIRecognizer verifies that binary (default "tesseract") is on PATH.
func NewCLIRecognizer(binary, language string) (*CLIRecognizer, error) {
	if binary == "" {
		binary = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("tesseract binary %q: %w", binary, err)
	}
	return &CLIRecognizer{Binary: path, Language: language}, nil
}

// Args returns the command line used for one recognition, image on stdin.
func (c *CLIRecognizer) Args() []string {
	return []string{
		"stdin", "stdout",
		"-l", c.Language,
		"--psm", "7",
		"-c", "tessedit_char_whitelist=" + Digits,
	}
}

// Recognize implements Recognizer.
func (c *CLIRecognizer) Recognize(ctx context.Context, img image.Image) ([]string, error) {
	data, err := encodePNG(img)
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, c.Binary, c.Args()...)
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("tesseract cli: %w (%s)", err, snippet(strings.TrimSpace(stderr.String()), 120))
	}
	return splitFragments(stdout.String()), nil
}

// Close is a no-op; every call owns its process.
func (c *CLIRecognizer) Close() error { return nil }
