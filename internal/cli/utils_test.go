package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/campusbot/internal/knowledge"
	"github.com/hyperjump/campusbot/internal/models"
	"github.com/hyperjump/campusbot/internal/resolver"
)

func sampleEntry() *models.KnowledgeEntry {
	return &models.KnowledgeEntry{
		ID:          "k-1",
		Question:    "¿Cuáles son los requisitos de admisión?",
		Answer:      "Certificado de bachillerato y examen de ingreso.",
		Category:    models.CategoryAdmissions,
		Keywords:    []string{"requisitos", "admision"},
		UsageCount:  3,
		SuccessRate: 0.67,
		Provenance:  models.ProvenanceManual,
		Active:      true,
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{" JSON ", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOutputFormat(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteAnswer(t *testing.T) {
	res := &resolver.Result{
		Content:     "Certificado de bachillerato.",
		Confidence:  0.85,
		Source:      resolver.SourceKnowledgeBase,
		Intent:      models.CategoryAdmissions,
		KnowledgeID: "k-1",
		Latency:     12 * time.Millisecond,
		State:       models.ConversationState{ConversationID: "c-1"},
	}

	var buf bytes.Buffer
	if err := WriteAnswer(&buf, res, OutputText); err != nil {
		t.Fatalf("WriteAnswer(text): %v", err)
	}
	for _, sub := range []string{"Certificado de bachillerato.", "[knowledge_base]", "admissions", "0.85", "12ms", "knowledge: k-1"} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("text output missing %q:\n%s", sub, buf.String())
		}
	}

	buf.Reset()
	if err := WriteAnswer(&buf, res, OutputJSON); err != nil {
		t.Fatalf("WriteAnswer(json): %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded["conversation_id"] != "c-1" || decoded["source"] != "knowledge_base" || decoded["latency_ms"] != float64(12) {
		t.Errorf("unexpected JSON answer: %v", decoded)
	}
}

func TestWriteEntries(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteEntries(&buf, []*models.KnowledgeEntry{sampleEntry()}, OutputText); err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{"1 entries", "ID: k-1", "admissions", "manual", "active", "Uses: 3", "requisitos, admision"} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("text output missing %q:\n%s", sub, buf.String())
		}
	}

	buf.Reset()
	if err := WriteEntries(&buf, nil, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty listing should encode as [], got %q", buf.String())
	}
}

func TestWriteSearchResults(t *testing.T) {
	response := &models.KnowledgeSearchResponse{
		Query:     "requisitos",
		Total:     1,
		QueryTime: 4,
		Results:   []*models.KnowledgeSearchResult{{Entry: sampleEntry(), Score: 1.25, Rank: 1}},
	}
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, response, OutputText); err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{"Found 1 results in 4ms", "Rank: 1", "Score: 1.2500", "ID: k-1"} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("text output missing %q:\n%s", sub, buf.String())
		}
	}

	buf.Reset()
	if err := WriteSearchResults(&buf, response, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.KnowledgeSearchResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Total != 1 || decoded.Results[0].Entry.ID != "k-1" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteImportResult(t *testing.T) {
	res := knowledge.ImportResult{Files: 2, Created: 5, Updated: 1, Skipped: 1, Deactivated: 2, Errors: []string{"faq.csv row 3: answer is required"}}
	var buf bytes.Buffer
	if err := WriteImportResult(&buf, res, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Imported 2 files: 5 created, 1 updated, 1 skipped, 2 deactivated") {
		t.Errorf("unexpected summary:\n%s", out)
	}
	if !strings.Contains(out, "error: faq.csv row 3") {
		t.Errorf("missing error line:\n%s", out)
	}
}

func TestWritePatterns(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePatterns(&buf, nil, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No patterns.") {
		t.Errorf("got %q", buf.String())
	}

	buf.Reset()
	patterns := []*models.LearningPattern{{
		Type:       models.PatternFrequentQuestion,
		Data:       map[string]string{"term": "becas"},
		Frequency:  8,
		Confidence: 0.8,
		LastSeen:   time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
	}}
	if err := WritePatterns(&buf, patterns, OutputText); err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{"frequent_question", "becas", "8", "0.80", "2026-03-01 10:30"} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("text output missing %q:\n%s", sub, buf.String())
		}
	}
}

func TestWriteStats(t *testing.T) {
	stats := &models.Stats{KnowledgeEntries: 10, ActiveEntries: 8, LearnedEntries: 2, Conversations: 3, Messages: 12, Feedback: 4, AverageRating: 4.25, Patterns: 5}
	var buf bytes.Buffer
	if err := WriteStats(&buf, stats, OutputText); err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{"10 (8 active, 2 learned)", "3 (12 messages)", "average rating 4.25", "Patterns:          5"} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("text output missing %q:\n%s", sub, buf.String())
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		s      string
		maxLen int
		want   string
	}{
		{"empty", "", 5, ""},
		{"short", "hi", 5, "hi"},
		{"exact", "hello", 5, "hello"},
		{"long", "hello world", 5, "hello..."},
		{"runes", "admisión abierta", 8, "admisión..."},
		{"maxLen zero", "ab", 0, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.s, tt.maxLen); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		maxWords int
		want     string
	}{
		{"empty", "", 3, ""},
		{"few words", "one two", 3, "one two"},
		{"more", "one two three four", 3, "one two three..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateWords(tt.s, tt.maxWords); got != tt.want {
				t.Errorf("TruncateWords(%q, %d) = %q, want %q", tt.s, tt.maxWords, got, tt.want)
			}
		})
	}
}
