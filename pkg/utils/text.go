// Package utils provides shared utilities for text, rounding, and logging.
package utils

import "unicode/utf8"

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged. Counts runes, not bytes.
func Truncate(s string, maxLen int) string {
	out, cut := ClampRunes(s, maxLen)
	if !cut {
		return s
	}
	return out + "..."
}

// ClampRunes returns at most maxLen runes of s and whether anything was cut.
// If maxLen is 0 or negative, returns s unchanged.
func ClampRunes(s string, maxLen int) (string, bool) {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s, false
	}
	n := 0
	for i := range s {
		if n == maxLen {
			return s[:i], true
		}
		n++
	}
	return s, false
}
