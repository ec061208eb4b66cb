// Package textnorm folds user and knowledge text into a comparable form:
// lowercase, no diacritics, no punctuation, single spaces.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases text, decomposes it (NFD), drops combining marks,
// removes every rune that is not a word character ([a-z0-9_]) or whitespace,
// and collapses whitespace runs into single spaces. Normalize is idempotent
// and Normalize("") == "".
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	lowered := strings.ToLower(text)
	// transform chains keep state, so one is built per call.
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(stripper, lowered)
	if err != nil {
		folded = lowered
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		switch {
		case isWordRune(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSpace = true
		}
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
}

// Words returns the space-separated words of Normalize(text).
func Words(text string) []string {
	n := Normalize(text)
	if n == "" {
		return nil
	}
	return strings.Split(n, " ")
}

// Tokenize returns Words(text) without stopwords.
func Tokenize(text string) []string {
	words := Words(text)
	out := words[:0]
	for _, w := range words {
		if !IsStopword(w) {
			out = append(out, w)
		}
	}
	return out
}

// ExtractKeywords returns the non-stopword tokens of text longer than minLen,
// de-duplicated in first-seen order, at most max of them (max <= 0 means no limit).
func ExtractKeywords(text string, minLen, max int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tok := range Tokenize(text) {
		if len(tok) <= minLen || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

// ContainsToken reports whether the normalized form of text contains phrase
// as whole words. phrase must already be normalized.
func ContainsToken(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(" "+Normalize(text)+" ", " "+phrase+" ")
}
