package models

import (
	"encoding/json"
	"time"
)

// PatternFrequentQuestion tags a term that recurs across recent user messages.
const PatternFrequentQuestion = "frequent_question"

// LearningPattern is a mined observation about user traffic.
// (Type, Data) identifies a pattern; there is at most one row per pair.
type LearningPattern struct {
	ID         string            `json:"id" db:"id"`
	Type       string            `json:"type" db:"type"`
	Data       map[string]string `json:"data" db:"data"`
	Frequency  int               `json:"frequency" db:"frequency"`
	Confidence float64           `json:"confidence" db:"confidence"`
	LastSeen   time.Time         `json:"last_seen" db:"last_seen"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
}

// PatternKey returns the canonical key for data. encoding/json sorts map keys,
// so equal maps always yield the same key.
func PatternKey(data map[string]string) string {
	if len(data) == 0 {
		return "{}"
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
