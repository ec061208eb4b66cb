package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/campusbot/internal/models"
)

const knowledgeColumns = `id, question, answer, category, keywords, usage_count, success_rate,
	provenance, active, source_ref, created_at, updated_at`

// CreateKnowledge inserts an entry and returns its id. A new id is assigned when entry.ID is empty.
func (s *SQLStorage) CreateKnowledge(ctx context.Context, entry *models.KnowledgeEntry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Keywords == nil {
		entry.Keywords = []string{}
	}
	keywordsJSON, err := json.Marshal(entry.Keywords)
	if err != nil {
		return "", fmt.Errorf("failed to marshal keywords: %w", err)
	}

	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	_, err = s.exec(ctx,
		`INSERT INTO knowledge_entries (`+knowledgeColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Question, entry.Answer, string(entry.Category), string(keywordsJSON),
		entry.UsageCount, entry.SuccessRate, string(entry.Provenance), entry.Active, entry.SourceRef,
		entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return "", err
	}
	return entry.ID, nil
}

// GetKnowledge returns an entry by id.
func (s *SQLStorage) GetKnowledge(ctx context.Context, id string) (*models.KnowledgeEntry, error) {
	entry, err := scanKnowledge(s.queryRow(ctx,
		`SELECT `+knowledgeColumns+` FROM knowledge_entries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("knowledge entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListKnowledge returns entries matching filter in insertion order.
func (s *SQLStorage) ListKnowledge(ctx context.Context, filter models.KnowledgeFilter) ([]*models.KnowledgeEntry, error) {
	var where []string
	var args []any
	if filter.Active != nil {
		where = append(where, "active = ?")
		args = append(args, *filter.Active)
	}
	if filter.Category != nil {
		where = append(where, "category = ?")
		args = append(args, string(*filter.Category))
	}
	if filter.Provenance != nil {
		where = append(where, "provenance = ?")
		args = append(args, string(*filter.Provenance))
	}
	if filter.SourceRef != "" {
		where = append(where, "source_ref = ?")
		args = append(args, filter.SourceRef)
	}
	q := `SELECT ` + knowledgeColumns + ` FROM knowledge_entries`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at, id`

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.KnowledgeEntry
	for rows.Next() {
		entry, err := scanKnowledge(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// UpdateKnowledge applies the non-nil fields of update.
func (s *SQLStorage) UpdateKnowledge(ctx context.Context, id string, update models.KnowledgeUpdate) error {
	var sets []string
	var args []any
	if update.Question != nil {
		sets = append(sets, "question = ?")
		args = append(args, *update.Question)
	}
	if update.Answer != nil {
		sets = append(sets, "answer = ?")
		args = append(args, *update.Answer)
	}
	if update.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, string(*update.Category))
	}
	if update.Keywords != nil {
		keywordsJSON, err := json.Marshal(update.Keywords)
		if err != nil {
			return fmt.Errorf("failed to marshal keywords: %w", err)
		}
		sets = append(sets, "keywords = ?")
		args = append(args, string(keywordsJSON))
	}
	if update.UsageCount != nil {
		sets = append(sets, "usage_count = ?")
		args = append(args, *update.UsageCount)
	}
	if update.SuccessRate != nil {
		sets = append(sets, "success_rate = ?")
		args = append(args, *update.SuccessRate)
	}
	if update.Active != nil {
		sets = append(sets, "active = ?")
		args = append(args, *update.Active)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	result, err := s.exec(ctx,
		`UPDATE knowledge_entries SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("knowledge entry %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteKnowledge removes an entry by id.
func (s *SQLStorage) DeleteKnowledge(ctx context.Context, id string) error {
	result, err := s.exec(ctx, `DELETE FROM knowledge_entries WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("knowledge entry %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanKnowledge(row rowScanner) (*models.KnowledgeEntry, error) {
	var entry models.KnowledgeEntry
	var category, provenance, keywordsJSON string
	if err := row.Scan(&entry.ID, &entry.Question, &entry.Answer, &category, &keywordsJSON,
		&entry.UsageCount, &entry.SuccessRate, &provenance, &entry.Active, &entry.SourceRef,
		&entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return nil, err
	}
	entry.Category = models.Category(category)
	entry.Provenance = models.Provenance(provenance)
	entry.Keywords = []string{}
	if keywordsJSON != "" {
		if err := json.Unmarshal([]byte(keywordsJSON), &entry.Keywords); err != nil {
			return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
		}
	}
	return &entry, nil
}
