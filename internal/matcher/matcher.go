// Package matcher ranks knowledge entries against a user query.
package matcher

import (
	"sort"
	"strings"

	"github.com/hyperjump/campusbot/internal/models"
	"github.com/hyperjump/campusbot/internal/textnorm"
)

const (
	// MinWordLen: query and question words must be longer than this to count.
	MinWordLen = 2
	// QuestionWordPoints is awarded when a question word overlaps a query word.
	QuestionWordPoints = 2
	// KeywordPoints is awarded when a keyword overlaps a query word.
	KeywordPoints = 3
	// OverlapWeight and SuccessWeight blend the share of matched query words
	// with the entry's historical success rate.
	OverlapWeight = 0.7
	SuccessWeight = 0.3
	// ExactConfidence is reported for exact-tier matches.
	ExactConfidence = 1.0
)

// Match is a scored candidate.
type Match struct {
	Entry      *models.KnowledgeEntry `json:"entry"`
	Confidence float64                `json:"confidence"`
	Score      int                    `json:"score"`
	MatchCount int                    `json:"match_count"`
	Exact      bool                   `json:"exact"`
}

// Rank orders candidates for query. Exact matches (the whole normalized query
// equals the normalized question, answer or a keyword) come first in candidate
// order, followed by partial matches by descending confidence. Candidates with
// no overlap are dropped. A blank query returns every candidate unscored.
func Rank(query string, candidates []*models.KnowledgeEntry) []Match {
	normalizedQuery := textnorm.Normalize(query)
	if normalizedQuery == "" {
		out := make([]Match, 0, len(candidates))
		for _, c := range candidates {
			out = append(out, Match{Entry: c})
		}
		return out
	}
	queryWords := significantWords(normalizedQuery)

	var exact, partial []Match
	for _, entry := range candidates {
		if entry == nil {
			continue
		}
		question := textnorm.Normalize(entry.Question)
		keywords := normalizeAll(entry.Keywords)

		if isExact(normalizedQuery, question, entry.Answer, keywords) {
			exact = append(exact, Match{Entry: entry, Confidence: ExactConfidence, Exact: true})
			continue
		}
		if len(queryWords) == 0 {
			continue
		}

		questionWords := significantWords(question)
		score, count := 0, 0
		for _, qw := range queryWords {
			hit := false
			if anyOverlap(qw, questionWords) {
				score += QuestionWordPoints
				hit = true
			}
			if anyOverlap(qw, keywords) {
				score += KeywordPoints
				hit = true
			}
			if hit {
				count++
			}
		}
		if count == 0 {
			continue
		}
		ratio := float64(count) / float64(len(queryWords))
		partial = append(partial, Match{
			Entry:      entry,
			Confidence: OverlapWeight*ratio + SuccessWeight*entry.SuccessRate,
			Score:      score,
			MatchCount: count,
		})
	}

	sort.SliceStable(partial, func(i, j int) bool {
		return partial[i].Confidence > partial[j].Confidence
	})
	return append(exact, partial...)
}

// Top returns at most n matches from the head of ranked.
func Top(ranked []Match, n int) []Match {
	if n < 0 || len(ranked) <= n {
		return ranked
	}
	return ranked[:n]
}

func isExact(query, question, answer string, keywords []string) bool {
	if question == query {
		return true
	}
	for _, kw := range keywords {
		if kw == query {
			return true
		}
	}
	return textnorm.Normalize(answer) == query
}

func significantWords(normalized string) []string {
	if normalized == "" {
		return nil
	}
	fields := strings.Split(normalized, " ")
	out := fields[:0]
	for _, w := range fields {
		if len(w) > MinWordLen {
			out = append(out, w)
		}
	}
	return out
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if n := textnorm.Normalize(s); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// anyOverlap reports whether some candidate contains word or is contained in it.
func anyOverlap(word string, candidates []string) bool {
	for _, c := range candidates {
		if strings.Contains(c, word) || strings.Contains(word, c) {
			return true
		}
	}
	return false
}
