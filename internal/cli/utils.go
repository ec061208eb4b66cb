// Package cli provides output helpers for the campusbot command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/campusbot/internal/knowledge"
	"github.com/hyperjump/campusbot/internal/models"
	"github.com/hyperjump/campusbot/internal/resolver"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const rule = "─────────────────────────────────────────────────────────"

// ParseOutputFormat parses a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("invalid output format %q (use text or json)", s)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// answerJSON is the machine-readable form of an answer.
type answerJSON struct {
	ConversationID string          `json:"conversation_id,omitempty"`
	Content        string          `json:"content"`
	Confidence     float64         `json:"confidence"`
	Source         string          `json:"source"`
	Intent         models.Category `json:"intent"`
	KnowledgeID    string          `json:"knowledge_id,omitempty"`
	LatencyMs      int64           `json:"latency_ms"`
}

// WriteAnswer writes a resolved answer.
func WriteAnswer(w io.Writer, res *resolver.Result, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, answerJSON{
			ConversationID: res.State.ConversationID,
			Content:        res.Content,
			Confidence:     res.Confidence,
			Source:         res.Source,
			Intent:         res.Intent,
			KnowledgeID:    res.KnowledgeID,
			LatencyMs:      res.Latency.Milliseconds(),
		})
	}
	fmt.Fprintf(w, "\n%s\n\n", res.Content)
	fmt.Fprintf(w, "[%s] intent: %s | confidence: %.2f | %dms\n",
		res.Source, res.Intent, res.Confidence, res.Latency.Milliseconds())
	if res.KnowledgeID != "" {
		fmt.Fprintf(w, "knowledge: %s\n", res.KnowledgeID)
	}
	return nil
}

// WriteEntries writes a knowledge listing.
func WriteEntries(w io.Writer, entries []*models.KnowledgeEntry, format OutputFormat) error {
	if format == OutputJSON {
		if entries == nil {
			entries = []*models.KnowledgeEntry{}
		}
		return writeJSON(w, entries)
	}
	fmt.Fprintf(w, "\n%d entries\n\n", len(entries))
	for _, e := range entries {
		writeEntry(w, e, "")
	}
	return nil
}

func writeEntry(w io.Writer, e *models.KnowledgeEntry, header string) {
	fmt.Fprintln(w, rule)
	if header != "" {
		fmt.Fprintln(w, header)
	}
	status := "active"
	if !e.Active {
		status = "inactive"
	}
	fmt.Fprintf(w, "ID: %s | %s | %s | %s\n", e.ID, e.Category, e.Provenance, status)
	fmt.Fprintf(w, "Uses: %d | Success rate: %.2f\n", e.UsageCount, e.SuccessRate)
	if len(e.Keywords) > 0 {
		fmt.Fprintf(w, "Keywords: %s\n", strings.Join(e.Keywords, ", "))
	}
	fmt.Fprintf(w, "Q: %s\n", Truncate(e.Question, 200))
	fmt.Fprintf(w, "A: %s\n\n", Truncate(e.Answer, 200))
}

// WriteSearchResults writes a curator search response.
func WriteSearchResults(w io.Writer, response *models.KnowledgeSearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results in %dms\n\n", response.Total, response.QueryTime)
	for _, r := range response.Results {
		writeEntry(w, r.Entry, fmt.Sprintf("Rank: %d | Score: %.4f", r.Rank, r.Score))
	}
	return nil
}

// WriteImportResult writes a seed import summary.
func WriteImportResult(w io.Writer, res knowledge.ImportResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "Imported %d files: %d created, %d updated, %d skipped, %d deactivated\n",
		res.Files, res.Created, res.Updated, res.Skipped, res.Deactivated)
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  error: %s\n", e)
	}
	return nil
}

// WritePatterns writes learning patterns.
func WritePatterns(w io.Writer, patterns []*models.LearningPattern, format OutputFormat) error {
	if format == OutputJSON {
		if patterns == nil {
			patterns = []*models.LearningPattern{}
		}
		return writeJSON(w, patterns)
	}
	if len(patterns) == 0 {
		fmt.Fprintln(w, "No patterns.")
		return nil
	}
	fmt.Fprintf(w, "%-24s %-32s %9s %10s  %s\n", "TYPE", "DATA", "FREQUENCY", "CONFIDENCE", "LAST SEEN")
	for _, p := range patterns {
		fmt.Fprintf(w, "%-24s %-32s %9d %10.2f  %s\n",
			p.Type, TruncateWords(patternData(p.Data), 4), p.Frequency, p.Confidence,
			p.LastSeen.Format("2006-01-02 15:04"))
	}
	return nil
}

func patternData(data map[string]string) string {
	if term, ok := data["term"]; ok && len(data) == 1 {
		return term
	}
	return models.PatternKey(data)
}

// WriteStats writes storage statistics.
func WriteStats(w io.Writer, stats *models.Stats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	fmt.Fprintf(w, "Knowledge entries: %d (%d active, %d learned)\n",
		stats.KnowledgeEntries, stats.ActiveEntries, stats.LearnedEntries)
	fmt.Fprintf(w, "Conversations:     %d (%d messages)\n", stats.Conversations, stats.Messages)
	fmt.Fprintf(w, "Feedback:          %d (average rating %.2f)\n", stats.Feedback, stats.AverageRating)
	fmt.Fprintf(w, "Patterns:          %d\n", stats.Patterns)
	return nil
}

// Truncate truncates s to maxLen runes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 0 || len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
