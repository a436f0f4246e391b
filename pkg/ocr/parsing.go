package ocr

import (
	"strconv"
	"strings"
)

// ParseFragments joins recognizer fragments in the order given and parses
// the result. Anything other than a non-empty run of ASCII digits is
// Unrecognized; it is never coerced to 0.
func ParseFragments(fragments []string) Reading {
	var b strings.Builder
	for _, f := range fragments {
		b.WriteString(strings.TrimSpace(f))
	}
	joined := b.String()
	if joined == "" || onlyDigits(joined) != joined {
		return Unrecognized
	}
	v, err := strconv.Atoi(joined)
	if err != nil {
		return Unrecognized
	}
	return Recognized(v)
}

// onlyDigits extracts decimal digits from a string.
func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
