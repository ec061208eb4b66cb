package models

import "fmt"

// KnowledgeSearchQuery is a curator search over the knowledge index.
type KnowledgeSearchQuery struct {
	Query    string `json:"query"`
	Limit    int    `json:"limit,omitempty"`
	Fuzzy    bool   `json:"fuzzy,omitempty"`
	Category string `json:"category,omitempty"`
}

// Validate ensures the query has valid fields and sets defaults.
// Returns an error if the query is empty or the category is unknown.
func (q *KnowledgeSearchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Category != "" {
		if _, err := ParseCategory(q.Category); err != nil {
			return err
		}
	}
	return nil
}

// MatchRequest asks the matcher to rank knowledge for a query.
type MatchRequest struct {
	Query    string `json:"query"`
	Category string `json:"category,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}
