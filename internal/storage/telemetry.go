package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/campusbot/internal/models"
)

const messageColumns = `id, conversation_id, role, content, intent, confidence, source,
	knowledge_id, latency_ms, rating, is_error, created_at`

// CreateConversation inserts a conversation and returns its id.
func (s *SQLStorage) CreateConversation(ctx context.Context, c *models.Conversation) (string, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := s.exec(ctx,
		`INSERT INTO conversations (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Title, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

// GetConversation returns a conversation by id.
func (s *SQLStorage) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var c models.Conversation
	err := s.queryRow(ctx,
		`SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE id = ?`, id,
	).Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// AppendMessage adds m to the end of its conversation and returns its id.
func (s *SQLStorage) AppendMessage(ctx context.Context, m *models.Message) (string, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	var seq int64
	if err := tx.QueryRowContext(ctx, s.rebind(
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_id = ?`), m.ConversationID,
	).Scan(&seq); err != nil {
		return "", err
	}

	var rating sql.NullInt64
	if m.Rating != nil {
		rating = sql.NullInt64{Int64: int64(*m.Rating), Valid: true}
	}
	if _, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO messages (id, conversation_id, seq, role, content, intent, confidence, source,
			knowledge_id, latency_ms, rating, is_error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		m.ID, m.ConversationID, seq, string(m.Role), m.Content, string(m.Intent),
		nullFloat(m.Confidence), m.Source, m.KnowledgeID, nullInt(m.LatencyMs), rating,
		m.IsError, m.CreatedAt,
	); err != nil {
		return "", err
	}

	result, err := tx.ExecContext(ctx, s.rebind(
		`UPDATE conversations SET updated_at = ? WHERE id = ?`), m.CreatedAt, m.ConversationID)
	if err != nil {
		return "", err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return "", fmt.Errorf("conversation %s: %w", m.ConversationID, ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return m.ID, nil
}

// GetMessage returns a message by id.
func (s *SQLStorage) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	m, err := scanMessage(s.queryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessages returns the messages of a conversation in order.
func (s *SQLStorage) ListMessages(ctx context.Context, conversationID string) ([]*models.Message, error) {
	return s.listMessages(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE conversation_id = ? ORDER BY seq`, conversationID)
}

// RecentUserMessages returns up to limit user messages, newest first.
func (s *SQLStorage) RecentUserMessages(ctx context.Context, limit int) ([]*models.Message, error) {
	return s.listMessages(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE role = ? ORDER BY created_at DESC, seq DESC LIMIT ?`,
		string(models.RoleUser), limit)
}

func (s *SQLStorage) listMessages(ctx context.Context, q string, args ...any) ([]*models.Message, error) {
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SetMessageRating stores a feedback rating on a message.
func (s *SQLStorage) SetMessageRating(ctx context.Context, id string, rating int) error {
	result, err := s.exec(ctx, `UPDATE messages SET rating = ? WHERE id = ?`, rating, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return nil
}

// CreateFeedback inserts a feedback event and returns its id.
func (s *SQLStorage) CreateFeedback(ctx context.Context, f *models.Feedback) (string, error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	f.CreatedAt = time.Now().UTC()
	var rating sql.NullInt64
	if f.Rating != nil {
		rating = sql.NullInt64{Int64: int64(*f.Rating), Valid: true}
	}
	_, err := s.exec(ctx,
		`INSERT INTO feedback (id, conversation_id, message_id, rating, comment, processed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.ConversationID, f.MessageID, rating, f.Comment, f.Processed, f.CreatedAt,
	)
	if err != nil {
		return "", err
	}
	return f.ID, nil
}

// ListFeedback returns feedback newest first, optionally filtered by the processed flag.
func (s *SQLStorage) ListFeedback(ctx context.Context, processed *bool, limit int) ([]*models.Feedback, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT id, conversation_id, message_id, rating, comment, processed, created_at FROM feedback`
	var args []any
	if processed != nil {
		q += ` WHERE processed = ?`
		args = append(args, *processed)
	}
	q += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Feedback
	for rows.Next() {
		var f models.Feedback
		var rating sql.NullInt64
		if err := rows.Scan(&f.ID, &f.ConversationID, &f.MessageID, &rating, &f.Comment, &f.Processed, &f.CreatedAt); err != nil {
			return nil, err
		}
		if rating.Valid {
			r := int(rating.Int64)
			f.Rating = &r
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

// MarkFeedbackProcessed sets the processed flag; it is the only mutable field of feedback.
func (s *SQLStorage) MarkFeedbackProcessed(ctx context.Context, id string) error {
	result, err := s.exec(ctx, `UPDATE feedback SET processed = ? WHERE id = ?`, true, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("feedback %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var m models.Message
	var role, intent string
	var confidence sql.NullFloat64
	var latency, rating sql.NullInt64
	if err := row.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &intent, &confidence, &m.Source,
		&m.KnowledgeID, &latency, &rating, &m.IsError, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Role = models.Role(role)
	m.Intent = models.Category(intent)
	if confidence.Valid {
		c := confidence.Float64
		m.Confidence = &c
	}
	if latency.Valid {
		l := latency.Int64
		m.LatencyMs = &l
	}
	if rating.Valid {
		r := int(rating.Int64)
		m.Rating = &r
	}
	return &m, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}
