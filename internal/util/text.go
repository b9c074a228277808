package util

import (
	"regexp"
	"strings"
)

var reSpaces = regexp.MustCompile(`\s+`)

// Normalize folds a term or identity field for comparison: lower-case,
// trimmed, inner whitespace squeezed.
func Normalize(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	return reSpaces.ReplaceAllString(s, " ")
}

// Flatten replaces line breaks with spaces and squeezes whitespace.
func Flatten(input string) string {
	s := strings.ReplaceAll(input, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}

// Truncate cuts s to at most n runes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func StringPtr(v string) *string { return &v }
