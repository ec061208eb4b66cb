package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/campusbot/internal/models"
)

const patternColumns = `id, type, data, frequency, confidence, last_seen, created_at`

// FindPattern returns the pattern with the given type and canonical data key.
func (s *SQLStorage) FindPattern(ctx context.Context, patternType, key string) (*models.LearningPattern, error) {
	p, err := scanPattern(s.queryRow(ctx,
		`SELECT `+patternColumns+` FROM learning_patterns WHERE type = ? AND data_key = ?`,
		patternType, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pattern %s %s: %w", patternType, key, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreatePattern inserts a pattern. The (type, data) pair must be new.
func (s *SQLStorage) CreatePattern(ctx context.Context, p *models.LearningPattern) (string, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	dataJSON, err := json.Marshal(p.Data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal pattern data: %w", err)
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	if p.LastSeen.IsZero() {
		p.LastSeen = now
	}
	_, err = s.exec(ctx,
		`INSERT INTO learning_patterns (id, type, data, data_key, frequency, confidence, last_seen, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Type, string(dataJSON), models.PatternKey(p.Data), p.Frequency, p.Confidence,
		p.LastSeen.UTC(), p.CreatedAt,
	)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

// UpdatePattern sets the counters of an existing pattern.
func (s *SQLStorage) UpdatePattern(ctx context.Context, id string, frequency int, confidence float64, lastSeen time.Time) error {
	result, err := s.exec(ctx,
		`UPDATE learning_patterns SET frequency = ?, confidence = ?, last_seen = ? WHERE id = ?`,
		frequency, confidence, lastSeen.UTC(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("pattern %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListPatterns returns patterns by descending frequency. Empty patternType lists all types.
func (s *SQLStorage) ListPatterns(ctx context.Context, patternType string, limit int) ([]*models.LearningPattern, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + patternColumns + ` FROM learning_patterns`
	var args []any
	if patternType != "" {
		q += ` WHERE type = ?`
		args = append(args, patternType)
	}
	q += ` ORDER BY frequency DESC, last_seen DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []*models.LearningPattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

func scanPattern(row rowScanner) (*models.LearningPattern, error) {
	var p models.LearningPattern
	var dataJSON string
	if err := row.Scan(&p.ID, &p.Type, &dataJSON, &p.Frequency, &p.Confidence, &p.LastSeen, &p.CreatedAt); err != nil {
		return nil, err
	}
	if dataJSON != "" {
		if err := json.Unmarshal([]byte(dataJSON), &p.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pattern data: %w", err)
		}
	}
	return &p, nil
}
