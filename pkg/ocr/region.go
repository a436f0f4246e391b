package ocr

import (
	"fmt"
	"image"
)

// Region is a named rectangle of the calibrated screenshot template holding a
// single number.
type Region struct {
	Name   string `yaml:"name" json:"name"`
	X      int    `yaml:"x" json:"x"`
	Y      int    `yaml:"y" json:"y"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
}

// Rect returns the region as an image rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Validate rejects regions that cannot be cropped. It does not check that the
// rectangle actually covers the number on screen.
func (r Region) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("region at (%d,%d) has no name", r.X, r.Y)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("region %s: invalid size %dx%d", r.Name, r.Width, r.Height)
	}
	if r.X < 0 || r.Y < 0 {
		return fmt.Errorf("region %s: negative origin (%d,%d)", r.Name, r.X, r.Y)
	}
	return nil
}
