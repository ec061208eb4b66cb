// Package knowledge curates the knowledge base: validated writes to the store
// with the search index kept in step, and seed file imports.
package knowledge

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/campusbot/internal/errs"
	"github.com/hyperjump/campusbot/internal/extract"
	"github.com/hyperjump/campusbot/internal/keyword"
	"github.com/hyperjump/campusbot/internal/matcher"
	"github.com/hyperjump/campusbot/internal/models"
	"github.com/hyperjump/campusbot/internal/storage"
	"github.com/hyperjump/campusbot/internal/textnorm"
	"github.com/hyperjump/campusbot/pkg/utils"
)

const (
	// MaxQuestionLen and MaxAnswerLen bound stored text, in runes.
	MaxQuestionLen = 1000
	MaxAnswerLen   = 5000
	// Keywords derived from the question when none are given.
	AutoKeywordMinLen = 3
	AutoKeywordMax    = 10
	// DefaultMatchLimit caps Match results when the request has no limit.
	DefaultMatchLimit = 5
)

// Outcome of a single write.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
)

// Service validates knowledge writes and mirrors them into the search index.
// The index is best effort: index failures are logged, store failures are returned.
type Service struct {
	store     storage.KnowledgeStore
	index     keyword.Index
	extractor *extract.Extractor
	logger    *zap.Logger
	workers   int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = utils.LoggerOrNop(l) }
}

// WithImportWorkers bounds concurrent file imports in ImportDirectory.
func WithImportWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// New creates a Service. index may be nil, in which case Search is unavailable.
func New(store storage.KnowledgeStore, index keyword.Index, opts ...Option) *Service {
	s := &Service{
		store:     store,
		index:     index,
		extractor: extract.NewExtractor(),
		logger:    zap.NewNop(),
		workers:   4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add creates an entry, or updates it when input.ID names an existing entry.
// A question that normalizes to nothing is silently skipped and returns "".
// Over-long question or answer text is truncated and logged.
func (s *Service) Add(ctx context.Context, input models.KnowledgeInput) (string, error) {
	id, _, err := s.upsert(ctx, input)
	return id, err
}

func (s *Service) upsert(ctx context.Context, input models.KnowledgeInput) (string, Outcome, error) {
	const op = "knowledge.Add"
	entry, err := s.prepare(input)
	if err != nil {
		return "", OutcomeSkipped, err
	}
	if entry == nil {
		s.logger.Debug("Skipping knowledge entry with empty question", zap.String("id", input.ID))
		return "", OutcomeSkipped, nil
	}

	if entry.ID != "" {
		existing, err := s.store.GetKnowledge(ctx, entry.ID)
		switch {
		case err == nil:
			update := models.KnowledgeUpdate{
				Question: &entry.Question,
				Answer:   &entry.Answer,
				Category: &entry.Category,
				Keywords: entry.Keywords,
				Active:   &entry.Active,
			}
			if err := s.store.UpdateKnowledge(ctx, entry.ID, update); err != nil {
				return "", OutcomeSkipped, errs.Store(op, err)
			}
			entry.UsageCount = existing.UsageCount
			entry.SuccessRate = existing.SuccessRate
			entry.CreatedAt = existing.CreatedAt
			s.reindex(ctx, entry)
			return entry.ID, OutcomeUpdated, nil
		case !storage.IsNotFound(err):
			return "", OutcomeSkipped, errs.Store(op, err)
		}
	}

	id, err := s.store.CreateKnowledge(ctx, entry)
	if err != nil {
		return "", OutcomeSkipped, errs.Store(op, err)
	}
	s.reindex(ctx, entry)
	s.logger.Debug("Knowledge entry created",
		zap.String("id", id),
		zap.String("category", string(entry.Category)),
		zap.String("provenance", string(entry.Provenance)),
	)
	return id, OutcomeCreated, nil
}

// prepare validates input and builds the entry to store. It returns nil, nil
// when the question normalizes to nothing.
func (s *Service) prepare(input models.KnowledgeInput) (*models.KnowledgeEntry, error) {
	const op = "knowledge.Add"
	category, err := models.ParseCategory(input.Category)
	if err != nil {
		return nil, errs.Validation(op, err.Error())
	}
	question := Preprocess(input.Question)
	if textnorm.Normalize(question) == "" {
		return nil, nil
	}
	answer := strings.TrimSpace(input.Answer)
	if answer == "" {
		return nil, errs.Validation(op, "answer is required")
	}
	question = s.clamp("question", question, MaxQuestionLen)
	answer = s.clamp("answer", answer, MaxAnswerLen)

	keywords := cleanKeywords(input.Keywords)
	if len(keywords) == 0 {
		keywords = textnorm.ExtractKeywords(question, AutoKeywordMinLen, AutoKeywordMax)
	}
	provenance := input.Provenance
	if provenance == "" {
		provenance = models.ProvenanceManual
	}
	active := true
	if input.Active != nil {
		active = *input.Active
	}
	return &models.KnowledgeEntry{
		ID:         strings.TrimSpace(input.ID),
		Question:   question,
		Answer:     answer,
		Category:   category,
		Keywords:   keywords,
		Provenance: provenance,
		Active:     active,
		SourceRef:  input.SourceRef,
	}, nil
}

func (s *Service) clamp(field, text string, max int) string {
	out, cut := utils.ClampRunes(text, max)
	if cut {
		s.logger.Warn("Truncating knowledge "+field,
			zap.Int("max_runes", max),
			zap.String("prefix", utils.Truncate(text, 60)),
		)
	}
	return out
}

// cleanKeywords trims keywords and drops blanks and duplicates (compared normalized).
func cleanKeywords(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, k := range in {
		k = strings.TrimSpace(k)
		norm := textnorm.Normalize(k)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, k)
	}
	return out
}

// Update applies a partial update with the same validation as Add.
func (s *Service) Update(ctx context.Context, id string, update models.KnowledgeUpdate) (*models.KnowledgeEntry, error) {
	const op = "knowledge.Update"
	if update.Empty() {
		return nil, errs.Validation(op, "no fields to update")
	}
	if update.Category != nil && !update.Category.Valid() {
		return nil, errs.Validation(op, "unknown category "+string(*update.Category))
	}
	if update.Question != nil {
		q := Preprocess(*update.Question)
		if textnorm.Normalize(q) == "" {
			return nil, errs.Validation(op, "question cannot be empty")
		}
		q = s.clamp("question", q, MaxQuestionLen)
		update.Question = &q
	}
	if update.Answer != nil {
		a := strings.TrimSpace(*update.Answer)
		if a == "" {
			return nil, errs.Validation(op, "answer cannot be empty")
		}
		a = s.clamp("answer", a, MaxAnswerLen)
		update.Answer = &a
	}
	if update.Keywords != nil {
		update.Keywords = cleanKeywords(update.Keywords)
	}
	if err := s.store.UpdateKnowledge(ctx, id, update); err != nil {
		return nil, errs.Store(op, err)
	}
	entry, err := s.store.GetKnowledge(ctx, id)
	if err != nil {
		return nil, errs.Store(op, err)
	}
	s.reindex(ctx, entry)
	return entry, nil
}

// Get returns one entry.
func (s *Service) Get(ctx context.Context, id string) (*models.KnowledgeEntry, error) {
	entry, err := s.store.GetKnowledge(ctx, id)
	return entry, errs.Store("knowledge.Get", err)
}

// List returns entries matching filter in store order.
func (s *Service) List(ctx context.Context, filter models.KnowledgeFilter) ([]*models.KnowledgeEntry, error) {
	entries, err := s.store.ListKnowledge(ctx, filter)
	return entries, errs.Store("knowledge.List", err)
}

// Delete removes an entry from the store and the index.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteKnowledge(ctx, id); err != nil {
		return errs.Store("knowledge.Delete", err)
	}
	if s.index != nil {
		if err := s.index.Delete(ctx, id); err != nil {
			s.logger.Warn("Failed to remove entry from search index", zap.String("id", id), zap.Error(err))
		}
	}
	return nil
}

// Search runs a full-text search over active entries.
func (s *Service) Search(ctx context.Context, q models.KnowledgeSearchQuery) (*models.KnowledgeSearchResponse, error) {
	const op = "knowledge.Search"
	start := time.Now()
	if err := q.Validate(); err != nil {
		return nil, errs.Validation(op, err.Error())
	}
	if s.index == nil {
		return nil, errs.Configuration(op, "search index is not configured")
	}
	opts := &keyword.SearchOptions{QuestionBoost: 3, KeywordBoost: 2, FuzzyEnabled: q.Fuzzy}
	if q.Category != "" {
		cat, _ := models.ParseCategory(q.Category)
		opts.Category = &cat
	}
	hits, err := s.index.Search(ctx, q.Query, q.Limit, opts)
	if err != nil {
		return nil, errs.Store(op, err)
	}
	resp := &models.KnowledgeSearchResponse{Query: q.Query, Results: make([]*models.KnowledgeSearchResult, 0, len(hits))}
	for _, h := range hits {
		entry, err := s.store.GetKnowledge(ctx, h.ID)
		if storage.IsNotFound(err) {
			// Stale index entry.
			_ = s.index.Delete(ctx, h.ID)
			continue
		}
		if err != nil {
			return nil, errs.Store(op, err)
		}
		resp.Results = append(resp.Results, &models.KnowledgeSearchResult{
			Entry: entry,
			Score: h.Score,
			Rank:  len(resp.Results) + 1,
		})
	}
	resp.Total = len(resp.Results)
	resp.QueryTime = time.Since(start).Milliseconds()
	return resp, nil
}

// Match ranks active entries against req.Query with the resolver's matcher.
func (s *Service) Match(ctx context.Context, req models.MatchRequest) ([]matcher.Match, error) {
	const op = "knowledge.Match"
	var category *models.Category
	if req.Category != "" {
		c, err := models.ParseCategory(req.Category)
		if err != nil {
			return nil, errs.Validation(op, err.Error())
		}
		category = &c
	}
	candidates, err := s.store.ListKnowledge(ctx, models.ActiveOnly(category))
	if err != nil {
		return nil, errs.Store(op, err)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultMatchLimit
	}
	return matcher.Top(matcher.Rank(req.Query, candidates), limit), nil
}

// Reindex rebuilds the search index from the store and returns the entry count.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	const op = "knowledge.Reindex"
	if s.index == nil {
		return 0, errs.Configuration(op, "search index is not configured")
	}
	entries, err := s.store.ListKnowledge(ctx, models.KnowledgeFilter{})
	if err != nil {
		return 0, errs.Store(op, err)
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := s.index.Index(ctx, e); err != nil {
			return 0, errs.Store(op, err)
		}
	}
	s.logger.Info("Search index rebuilt", zap.Int("entries", len(entries)))
	return len(entries), nil
}

func (s *Service) reindex(ctx context.Context, entry *models.KnowledgeEntry) {
	if s.index == nil {
		return
	}
	if err := s.index.Index(ctx, entry); err != nil {
		s.logger.Warn("Failed to index knowledge entry", zap.String("id", entry.ID), zap.Error(err))
	}
}
