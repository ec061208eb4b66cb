// Package keyword provides full-text search over knowledge entries.
package keyword

import (
	"context"

	"github.com/hyperjump/campusbot/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// QuestionBoost multiplies matches in the question field. Values <= 1 disable field boosting.
	QuestionBoost float64
	// KeywordBoost multiplies matches in the keywords field.
	KeywordBoost float64
	// FuzzyEnabled matches terms within Fuzziness edits (typo tolerance).
	FuzzyEnabled bool
	// Fuzziness is the maximum edit distance, 1 or 2. Default 1.
	Fuzziness int
	// Category restricts hits to one category.
	Category *models.Category
	// IncludeInactive also returns deactivated entries.
	IncludeInactive bool
}

// Index defines knowledge search operations.
type Index interface {
	Index(ctx context.Context, entry *models.KnowledgeEntry) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Result, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}

// Result is a single keyword search hit.
type Result struct {
	ID    string
	Score float64
}
