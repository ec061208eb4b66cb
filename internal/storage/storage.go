// Package storage defines the persistence interfaces for knowledge, patterns, and telemetry.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/campusbot/internal/models"
)

// ErrNotFound is returned (wrapped) when a row does not exist.
var ErrNotFound = errors.New("not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// KnowledgeStore persists knowledge entries.
type KnowledgeStore interface {
	ListKnowledge(ctx context.Context, filter models.KnowledgeFilter) ([]*models.KnowledgeEntry, error)
	GetKnowledge(ctx context.Context, id string) (*models.KnowledgeEntry, error)
	CreateKnowledge(ctx context.Context, entry *models.KnowledgeEntry) (string, error)
	UpdateKnowledge(ctx context.Context, id string, update models.KnowledgeUpdate) error
	DeleteKnowledge(ctx context.Context, id string) error
}

// PatternStore persists learning patterns.
type PatternStore interface {
	FindPattern(ctx context.Context, patternType, key string) (*models.LearningPattern, error)
	CreatePattern(ctx context.Context, p *models.LearningPattern) (string, error)
	UpdatePattern(ctx context.Context, id string, frequency int, confidence float64, lastSeen time.Time) error
	ListPatterns(ctx context.Context, patternType string, limit int) ([]*models.LearningPattern, error)
}

// TelemetryStore persists conversations, messages, and feedback.
type TelemetryStore interface {
	CreateConversation(ctx context.Context, c *models.Conversation) (string, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	AppendMessage(ctx context.Context, m *models.Message) (string, error)
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]*models.Message, error)
	RecentUserMessages(ctx context.Context, limit int) ([]*models.Message, error)
	SetMessageRating(ctx context.Context, id string, rating int) error
	CreateFeedback(ctx context.Context, f *models.Feedback) (string, error)
	ListFeedback(ctx context.Context, processed *bool, limit int) ([]*models.Feedback, error)
	MarkFeedbackProcessed(ctx context.Context, id string) error
}

// Storage is the full persistence surface used by the server.
type Storage interface {
	KnowledgeStore
	PatternStore
	TelemetryStore

	Stats(ctx context.Context) (*models.Stats, error)
	Close() error
}
