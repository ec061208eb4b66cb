// Package models defines core data structures for knowledge entries, conversations, and patterns.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Category is the topic of a knowledge entry. The same closed set labels user intents.
type Category string

const (
	CategoryPrograms   Category = "programs"
	CategoryAdmissions Category = "admissions"
	CategoryContact    Category = "contact"
	CategoryCosts      Category = "costs"
	CategorySchedule   Category = "schedule"
	CategoryGeneral    Category = "general"
)

// Categories returns every category in intent priority order.
func Categories() []Category {
	return []Category{
		CategoryPrograms,
		CategoryAdmissions,
		CategoryContact,
		CategoryCosts,
		CategorySchedule,
		CategoryGeneral,
	}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory parses s (case-insensitive). Empty input yields CategoryGeneral.
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CategoryGeneral, nil
	}
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Provenance records who created a knowledge entry.
type Provenance string

const (
	ProvenanceManual  Provenance = "manual"
	ProvenanceLearned Provenance = "learned"
)

// KnowledgeEntry is a curated or learned question/answer pair.
type KnowledgeEntry struct {
	ID          string     `json:"id" db:"id"`
	Question    string     `json:"question" db:"question"`
	Answer      string     `json:"answer" db:"answer"`
	Category    Category   `json:"category" db:"category"`
	Keywords    []string   `json:"keywords" db:"keywords"`
	UsageCount  int        `json:"usage_count" db:"usage_count"`
	SuccessRate float64    `json:"success_rate" db:"success_rate"`
	Provenance  Provenance `json:"provenance" db:"provenance"`
	Active      bool       `json:"active" db:"active"`
	SourceRef   string     `json:"source_ref,omitempty" db:"source_ref"` // seed file path, empty for API and learned entries
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// KnowledgeInput is the input for creating a knowledge entry.
type KnowledgeInput struct {
	ID         string     `json:"id,omitempty" yaml:"id,omitempty"`
	Question   string     `json:"question" yaml:"question"`
	Answer     string     `json:"answer" yaml:"answer"`
	Category   string     `json:"category,omitempty" yaml:"category,omitempty"`
	Keywords   []string   `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Active     *bool      `json:"active,omitempty" yaml:"active,omitempty"`
	Provenance Provenance `json:"-" yaml:"-"`
	SourceRef  string     `json:"-" yaml:"-"`
}

// KnowledgeFilter narrows a knowledge listing. Nil fields do not filter.
type KnowledgeFilter struct {
	Active     *bool
	Category   *Category
	Provenance *Provenance
	SourceRef  string
}

// ActiveOnly returns a filter selecting active entries, optionally of one category.
func ActiveOnly(category *Category) KnowledgeFilter {
	active := true
	return KnowledgeFilter{Active: &active, Category: category}
}

// KnowledgeUpdate holds the fields to change on an entry. Nil fields are left as is.
type KnowledgeUpdate struct {
	Question    *string   `json:"question,omitempty"`
	Answer      *string   `json:"answer,omitempty"`
	Category    *Category `json:"category,omitempty"`
	Keywords    []string  `json:"keywords,omitempty"`
	UsageCount  *int      `json:"-"`
	SuccessRate *float64  `json:"-"`
	Active      *bool     `json:"active,omitempty"`
}

// Empty reports whether u changes nothing.
func (u KnowledgeUpdate) Empty() bool {
	return u.Question == nil && u.Answer == nil && u.Category == nil && u.Keywords == nil &&
		u.UsageCount == nil && u.SuccessRate == nil && u.Active == nil
}
