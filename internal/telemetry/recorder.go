// Package telemetry persists conversations, their turns, and user feedback.
package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/campusbot/internal/errs"
	"github.com/hyperjump/campusbot/internal/models"
	"github.com/hyperjump/campusbot/internal/storage"
	"github.com/hyperjump/campusbot/pkg/utils"
)

const (
	MinRating = 1
	MaxRating = 5
	// HelpfulRating: ratings at or above this count as a helpful knowledge answer.
	HelpfulRating = 4
	// MaxCommentLen bounds feedback comments, in runes.
	MaxCommentLen = 2000
	// SourceFallback marks an assistant turn that carries the fallback message.
	SourceFallback = "fallback"
)

// UsageRecorder revises the outcome of a knowledge answer that was already
// counted as a use when it was served.
type UsageRecorder interface {
	ReviseUsage(ctx context.Context, id string, from, to bool) (*models.KnowledgeEntry, error)
}

// Recorder writes telemetry. Callers own conversation state; the Recorder
// only persists it and loads it back.
type Recorder struct {
	store  storage.TelemetryStore
	usage  UsageRecorder
	logger *zap.Logger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger. Nil means no logging.
func WithLogger(l *zap.Logger) Option {
	return func(r *Recorder) { r.logger = utils.LoggerOrNop(l) }
}

// WithUsage feeds ratings on knowledge answers back into usage statistics.
func WithUsage(u UsageRecorder) Option {
	return func(r *Recorder) { r.usage = u }
}

// New creates a Recorder.
func New(store storage.TelemetryStore, opts ...Option) *Recorder {
	r := &Recorder{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StartConversation creates a conversation.
func (r *Recorder) StartConversation(ctx context.Context, userID, title string) (*models.Conversation, error) {
	title, _ = utils.ClampRunes(strings.TrimSpace(title), 200)
	c := &models.Conversation{UserID: strings.TrimSpace(userID), Title: title}
	if _, err := r.store.CreateConversation(ctx, c); err != nil {
		return nil, errs.Store("telemetry.StartConversation", err)
	}
	return c, nil
}

// Conversation returns a conversation by id.
func (r *Recorder) Conversation(ctx context.Context, id string) (*models.Conversation, error) {
	c, err := r.store.GetConversation(ctx, id)
	return c, errs.Store("telemetry.Conversation", err)
}

// Messages returns the turns of a conversation in order.
func (r *Recorder) Messages(ctx context.Context, conversationID string) ([]*models.Message, error) {
	const op = "telemetry.Messages"
	if _, err := r.store.GetConversation(ctx, conversationID); err != nil {
		return nil, errs.Store(op, err)
	}
	msgs, err := r.store.ListMessages(ctx, conversationID)
	return msgs, errs.Store(op, err)
}

// State loads the stored turns of a conversation as resolver input.
func (r *Recorder) State(ctx context.Context, conversationID string) (models.ConversationState, error) {
	msgs, err := r.Messages(ctx, conversationID)
	if err != nil {
		return models.ConversationState{}, err
	}
	state := models.ConversationState{ConversationID: conversationID, Turns: make([]models.Message, 0, len(msgs))}
	for _, m := range msgs {
		state.Turns = append(state.Turns, *m)
	}
	return state, nil
}

// RecordTurn appends a user turn and the assistant turn answering it, and
// returns the stored copies.
func (r *Recorder) RecordTurn(ctx context.Context, user, assistant models.Message) (*models.Message, *models.Message, error) {
	const op = "telemetry.RecordTurn"
	if user.ConversationID == "" || user.ConversationID != assistant.ConversationID {
		return nil, nil, errs.Validation(op, "user and assistant turns must share a conversation")
	}
	user.Role = models.RoleUser
	assistant.Role = models.RoleAssistant
	u, a := user, assistant
	if _, err := r.store.AppendMessage(ctx, &u); err != nil {
		return nil, nil, errs.Store(op, err)
	}
	if _, err := r.store.AppendMessage(ctx, &a); err != nil {
		return &u, nil, errs.Store(op, err)
	}
	return &u, &a, nil
}

// RecordFailure appends the user turn and an assistant turn carrying the
// fallback message, flagged as an error so later prompts skip it.
func (r *Recorder) RecordFailure(ctx context.Context, conversationID, message string, intent models.Category, fallback string, cause error) (*models.Message, error) {
	user := models.Message{ConversationID: conversationID, Content: message, Intent: intent}
	assistant := models.Message{
		ConversationID: conversationID,
		Content:        fallback,
		Intent:         intent,
		Source:         SourceFallback,
		IsError:        true,
	}
	_, a, err := r.RecordTurn(ctx, user, assistant)
	if err != nil {
		return nil, err
	}
	r.logger.Warn("Recorded failed turn",
		zap.String("conversation_id", conversationID),
		zap.String("message_id", a.ID),
		zap.Error(cause),
	)
	return a, nil
}

// RecordFeedback validates and stores feedback. A rating on an assistant
// message answered from the knowledge base is stored on the message and
// revises the outcome of the use recorded when the answer was served: that
// use counts as helpful until rated, then as the latest rating says. The
// feedback is then marked processed.
func (r *Recorder) RecordFeedback(ctx context.Context, fb *models.Feedback) (string, error) {
	const op = "telemetry.RecordFeedback"
	fb.Comment = strings.TrimSpace(fb.Comment)
	if err := validateFeedback(fb); err != nil {
		return "", err
	}
	if _, err := r.store.GetConversation(ctx, fb.ConversationID); err != nil {
		if storage.IsNotFound(err) {
			return "", errs.Validation(op, fmt.Sprintf("conversation %q does not exist", fb.ConversationID))
		}
		return "", errs.Store(op, err)
	}
	var msg *models.Message
	if fb.MessageID != "" {
		m, err := r.store.GetMessage(ctx, fb.MessageID)
		if err != nil {
			if storage.IsNotFound(err) {
				return "", errs.Validation(op, fmt.Sprintf("message %q does not exist", fb.MessageID))
			}
			return "", errs.Store(op, err)
		}
		if m.ConversationID != fb.ConversationID {
			return "", errs.Validation(op, "message does not belong to conversation")
		}
		msg = m
	}

	fb.Processed = false
	id, err := r.store.CreateFeedback(ctx, fb)
	if err != nil {
		return "", errs.Store(op, err)
	}
	if msg == nil || fb.Rating == nil {
		return id, nil
	}

	if err := r.store.SetMessageRating(ctx, msg.ID, *fb.Rating); err != nil {
		return id, errs.Store(op, err)
	}
	if msg.Role == models.RoleAssistant && msg.KnowledgeID != "" && r.usage != nil {
		from := true
		if msg.Rating != nil {
			from = *msg.Rating >= HelpfulRating
		}
		to := *fb.Rating >= HelpfulRating
		if _, err := r.usage.ReviseUsage(ctx, msg.KnowledgeID, from, to); err != nil {
			r.logger.Warn("Failed to apply feedback to knowledge usage",
				zap.String("feedback_id", id),
				zap.String("knowledge_id", msg.KnowledgeID),
				zap.Error(err),
			)
			return id, nil
		}
	}
	if err := r.store.MarkFeedbackProcessed(ctx, id); err != nil {
		return id, errs.Store(op, err)
	}
	fb.Processed = true
	return id, nil
}

// Feedback lists feedback newest first, optionally by processed flag.
func (r *Recorder) Feedback(ctx context.Context, processed *bool, limit int) ([]*models.Feedback, error) {
	out, err := r.store.ListFeedback(ctx, processed, limit)
	return out, errs.Store("telemetry.Feedback", err)
}

func validateFeedback(fb *models.Feedback) error {
	const op = "telemetry.RecordFeedback"
	if strings.TrimSpace(fb.ConversationID) == "" {
		return errs.Validation(op, "conversation_id is required")
	}
	if fb.Rating == nil && fb.Comment == "" {
		return errs.Validation(op, "rating or comment is required")
	}
	if fb.Rating != nil && (*fb.Rating < MinRating || *fb.Rating > MaxRating) {
		return errs.Validation(op, fmt.Sprintf("rating must be between %d and %d", MinRating, MaxRating))
	}
	if n := len([]rune(fb.Comment)); n > MaxCommentLen {
		return errs.Validation(op, fmt.Sprintf("comment exceeds %d characters", MaxCommentLen))
	}
	return nil
}
