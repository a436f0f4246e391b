package ocr

import "errors"

// ErrImageDecode is returned when screenshot bytes cannot be decoded as an image.
var ErrImageDecode = errors.New("image decode failed")

// ErrNoText is returned by recognizers that detect nothing in a region.
var ErrNoText = errors.New("no text detected")
