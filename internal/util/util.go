// Package util provides common helpers used across the recorder.
package util

import "strings"

// TrimQuotes removes leading and trailing double quotes from a string.
// Host scripting bridges sometimes hand strings over still quoted.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// SanitizeFileName replaces characters that are not allowed in file names on
// Windows or Unix with an underscore and trims surrounding spaces and dots.
// An empty result becomes "unknown".
func SanitizeFileName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r < 0x20, r == 0x7f:
			b.WriteByte('_')
		case strings.ContainsRune(`<>:"/\|?*`, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), " .")
	if out == "" {
		return "unknown"
	}
	return out
}
