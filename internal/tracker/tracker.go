// Package tracker keeps knowledge usage statistics and mines recurring
// terms from recent user traffic.
package tracker

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/campusbot/internal/errs"
	"github.com/hyperjump/campusbot/internal/models"
	"github.com/hyperjump/campusbot/internal/storage"
	"github.com/hyperjump/campusbot/internal/textnorm"
	"github.com/hyperjump/campusbot/pkg/utils"
)

const (
	// PatternWindow is how many recent user messages DetectPatterns scans.
	PatternWindow = 100
	// TopTerms is how many of the most frequent terms are considered.
	TopTerms = 10
	// MinTermLen: terms must be strictly longer than this.
	MinTermLen = 3
	// MinTermFrequency: terms must occur strictly more often than this.
	MinTermFrequency = 3
	// HighFrequency: frequencies above this get HighConfidence.
	HighFrequency  = 5
	HighConfidence = 0.8
	LowConfidence  = 0.5
)

// Store is the persistence surface the tracker needs.
type Store interface {
	GetKnowledge(ctx context.Context, id string) (*models.KnowledgeEntry, error)
	UpdateKnowledge(ctx context.Context, id string, update models.KnowledgeUpdate) error
	RecentUserMessages(ctx context.Context, limit int) ([]*models.Message, error)
	FindPattern(ctx context.Context, patternType, key string) (*models.LearningPattern, error)
	CreatePattern(ctx context.Context, p *models.LearningPattern) (string, error)
	UpdatePattern(ctx context.Context, id string, frequency int, confidence float64, lastSeen time.Time) error
}

// Tracker records usage outcomes and learning patterns.
type Tracker struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger. Nil means no logging.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.logger = utils.LoggerOrNop(l) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates a Tracker.
func New(store Store, opts ...Option) *Tracker {
	t := &Tracker{store: store, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Round2 rounds x to two decimals.
func Round2(x float64) float64 {
	return utils.Round(x, 2)
}

// NextUsage returns the usage count and success rate after one more use.
func NextUsage(count int, rate float64, helpful bool) (int, float64) {
	n := count + 1
	hit := 0.0
	if helpful {
		hit = 1
	}
	r := Round2((rate*float64(count) + hit) / float64(n))
	if r < 0 {
		r = 0
	} else if r > 1 {
		r = 1
	}
	return n, r
}

// RecordUsage folds one usage outcome into the entry's statistics and returns
// the updated entry. Concurrent calls on the same entry may lose an update.
func (t *Tracker) RecordUsage(ctx context.Context, id string, helpful bool) (*models.KnowledgeEntry, error) {
	const op = "tracker.RecordUsage"
	entry, err := t.store.GetKnowledge(ctx, id)
	if err != nil {
		return nil, errs.Store(op, err)
	}
	count, rate := NextUsage(entry.UsageCount, entry.SuccessRate, helpful)
	if err := t.store.UpdateKnowledge(ctx, id, models.KnowledgeUpdate{UsageCount: &count, SuccessRate: &rate}); err != nil {
		return nil, errs.Store(op, err)
	}
	entry.UsageCount = count
	entry.SuccessRate = rate
	t.logger.Debug("Recorded knowledge usage",
		zap.String("id", id),
		zap.Bool("helpful", helpful),
		zap.Int("usage_count", count),
		zap.Float64("success_rate", rate),
	)
	return entry, nil
}

// ReviseOutcome recounts one recorded use as to instead of from, keeping the
// usage count. An entry with no recorded use counts a new one instead.
func ReviseOutcome(count int, rate float64, from, to bool) (int, float64) {
	if count <= 0 {
		return NextUsage(0, rate, to)
	}
	if from == to {
		return count, rate
	}
	delta := 1.0
	if from {
		delta = -1
	}
	r := Round2((rate*float64(count) + delta) / float64(count))
	if r < 0 {
		r = 0
	} else if r > 1 {
		r = 1
	}
	return count, r
}

// ReviseUsage changes the outcome of a use already folded into the entry's
// statistics, as when a user rates an answer served from the knowledge base.
func (t *Tracker) ReviseUsage(ctx context.Context, id string, from, to bool) (*models.KnowledgeEntry, error) {
	const op = "tracker.ReviseUsage"
	entry, err := t.store.GetKnowledge(ctx, id)
	if err != nil {
		return nil, errs.Store(op, err)
	}
	count, rate := ReviseOutcome(entry.UsageCount, entry.SuccessRate, from, to)
	if count == entry.UsageCount && rate == entry.SuccessRate {
		return entry, nil
	}
	if err := t.store.UpdateKnowledge(ctx, id, models.KnowledgeUpdate{UsageCount: &count, SuccessRate: &rate}); err != nil {
		return nil, errs.Store(op, err)
	}
	entry.UsageCount = count
	entry.SuccessRate = rate
	t.logger.Debug("Revised knowledge usage",
		zap.String("id", id),
		zap.Bool("helpful", to),
		zap.Int("usage_count", count),
		zap.Float64("success_rate", rate),
	)
	return entry, nil
}

// TermCount is a term and how many times it occurred.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// CountTerms tallies normalized terms longer than MinTermLen across texts and
// returns them by count descending, then term ascending.
func CountTerms(texts []string) []TermCount {
	counts := make(map[string]int)
	for _, text := range texts {
		for _, w := range textnorm.Words(text) {
			if len(w) > MinTermLen {
				counts[w]++
			}
		}
	}
	out := make([]TermCount, 0, len(counts))
	for term, c := range counts {
		out = append(out, TermCount{Term: term, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	return out
}

// ConfidenceFor maps a term frequency to a pattern confidence.
func ConfidenceFor(frequency int) float64 {
	if frequency > HighFrequency {
		return HighConfidence
	}
	return LowConfidence
}

// DetectPatterns scans recent user messages and upserts a frequent_question
// pattern for every top term seen more than MinTermFrequency times. An existing
// pattern accumulates the observed count. Returns the patterns written.
func (t *Tracker) DetectPatterns(ctx context.Context) ([]*models.LearningPattern, error) {
	const op = "tracker.DetectPatterns"
	msgs, err := t.store.RecentUserMessages(ctx, PatternWindow)
	if err != nil {
		return nil, errs.Store(op, err)
	}
	texts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		texts = append(texts, m.Content)
	}
	terms := CountTerms(texts)
	if len(terms) > TopTerms {
		terms = terms[:TopTerms]
	}

	now := t.now()
	var written []*models.LearningPattern
	for _, tc := range terms {
		if tc.Count <= MinTermFrequency {
			continue
		}
		data := map[string]string{"keyword": tc.Term}
		existing, err := t.store.FindPattern(ctx, models.PatternFrequentQuestion, models.PatternKey(data))
		if err != nil && !storage.IsNotFound(err) {
			return written, errs.Store(op, err)
		}
		if err == nil {
			freq := existing.Frequency + tc.Count
			conf := ConfidenceFor(freq)
			if err := t.store.UpdatePattern(ctx, existing.ID, freq, conf, now); err != nil {
				return written, errs.Store(op, err)
			}
			existing.Frequency = freq
			existing.Confidence = conf
			existing.LastSeen = now
			written = append(written, existing)
			continue
		}
		p := &models.LearningPattern{
			Type:       models.PatternFrequentQuestion,
			Data:       data,
			Frequency:  tc.Count,
			Confidence: ConfidenceFor(tc.Count),
			LastSeen:   now,
		}
		if _, err := t.store.CreatePattern(ctx, p); err != nil {
			return written, errs.Store(op, err)
		}
		written = append(written, p)
	}
	t.logger.Info("Pattern detection finished",
		zap.Int("messages", len(msgs)),
		zap.Int("patterns", len(written)),
	)
	return written, nil
}
