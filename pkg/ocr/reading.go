package ocr

import "strconv"

// Reading is the value extracted from one region. A zero Reading is
// Unrecognized, which is distinct from a recognized 0.
type Reading struct {
	Value      int
	Recognized bool
}

// Unrecognized marks a region whose text could not be parsed as a number.
var Unrecognized = Reading{}

// Recognized wraps a parsed value.
func Recognized(v int) Reading {
	return Reading{Value: v, Recognized: true}
}

// String renders the value, or an empty string when unrecognized.
func (r Reading) String() string {
	if !r.Recognized {
		return ""
	}
	return strconv.Itoa(r.Value)
}

// ParseReading is the inverse of String: empty text is Unrecognized.
func ParseReading(s string) (Reading, error) {
	if s == "" {
		return Unrecognized, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return Unrecognized, err
	}
	return Recognized(v), nil
}
