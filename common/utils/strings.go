package utils

import (
	"strings"
	"unicode"
)

// Clean strips control characters from both ends and cuts s to max runes.
// A max of zero or less keeps the full length.
func Clean(s string, max int) string {
	s = strings.TrimFunc(s, unicode.IsControl)
	s = strings.TrimSpace(s)
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
