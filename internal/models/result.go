package models

// KnowledgeSearchResult is one curator search hit.
type KnowledgeSearchResult struct {
	Entry *KnowledgeEntry `json:"entry"`
	Score float64         `json:"score"`
	Rank  int             `json:"rank"`
}

// KnowledgeSearchResponse is the response for a curator search.
type KnowledgeSearchResponse struct {
	Query     string                   `json:"query"`
	Results   []*KnowledgeSearchResult `json:"results"`
	Total     int                      `json:"total"`
	QueryTime int64                    `json:"query_time_ms"`
}

// Stats summarizes stored knowledge and telemetry.
type Stats struct {
	KnowledgeEntries int64   `json:"knowledge_entries"`
	ActiveEntries    int64   `json:"active_entries"`
	LearnedEntries   int64   `json:"learned_entries"`
	Conversations    int64   `json:"conversations"`
	Messages         int64   `json:"messages"`
	Feedback         int64   `json:"feedback"`
	AverageRating    float64 `json:"average_rating"`
	Patterns         int64   `json:"patterns"`
}
