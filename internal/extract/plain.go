package extract

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// cleanText trims s and replaces invalid UTF-8 with the replacement character.
func cleanText(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\ufffd")
	}
	return strings.TrimSpace(s)
}

// splitKeywords splits a cell of comma or semicolon separated keywords.
func splitKeywords(cell string) []string {
	fields := strings.FieldsFunc(cell, func(r rune) bool { return r == ',' || r == ';' || r == '|' })
	var out []string
	for _, f := range fields {
		if f = cleanText(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// parseActive reads a yes/no style cell. Empty cells return nil (use the default).
func parseActive(cell string) *bool {
	cell = strings.ToLower(cleanText(cell))
	if cell == "" {
		return nil
	}
	var v bool
	switch cell {
	case "si", "sí", "yes", "y", "x", "activo", "active":
		v = true
	case "no", "n", "inactivo", "inactive":
		v = false
	default:
		b, err := strconv.ParseBool(cell)
		if err != nil {
			return nil
		}
		v = b
	}
	return &v
}
