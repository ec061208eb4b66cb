// Package resolver answers a user message from the knowledge base when a
// match is confident enough, and otherwise asks the generation service with
// the best matches as context.
package resolver

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/campusbot/internal/background"
	"github.com/hyperjump/campusbot/internal/errs"
	"github.com/hyperjump/campusbot/internal/generation"
	"github.com/hyperjump/campusbot/internal/intent"
	"github.com/hyperjump/campusbot/internal/matcher"
	"github.com/hyperjump/campusbot/internal/metrics"
	"github.com/hyperjump/campusbot/internal/models"
	"github.com/hyperjump/campusbot/pkg/utils"
)

const (
	// DirectAnswerThreshold: a top match strictly above this is returned verbatim.
	DirectAnswerThreshold = 0.7
	// MaxContextEntries is how many top matches go into the generation prompt.
	MaxContextEntries = 3
	// MaxHistoryTurns is how many prior turns go into the generation prompt.
	MaxHistoryTurns = 6
)

// Answer sources.
const (
	SourceKnowledgeBase = "knowledge_base"
	SourceHybrid        = "hybrid"
	SourceGeneration    = "generation"
)

// Background task names.
const (
	TaskAutoLearn      = "auto_learn"
	TaskDetectPatterns = "detect_patterns"
)

// KnowledgeLister supplies candidate entries.
type KnowledgeLister interface {
	ListKnowledge(ctx context.Context, filter models.KnowledgeFilter) ([]*models.KnowledgeEntry, error)
}

// UsageRecorder folds a usage outcome into an entry's statistics.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, id string, helpful bool) (*models.KnowledgeEntry, error)
}

// Learner stores a learned question/answer pair.
type Learner interface {
	Add(ctx context.Context, input models.KnowledgeInput) (string, error)
}

// PatternDetector mines recent traffic for recurring terms.
type PatternDetector interface {
	DetectPatterns(ctx context.Context) ([]*models.LearningPattern, error)
}

// Result is the outcome of one resolution.
type Result struct {
	Content     string          `json:"content"`
	Confidence  float64         `json:"confidence"`
	Source      string          `json:"source"`
	Intent      models.Category `json:"intent"`
	KnowledgeID string          `json:"knowledge_id,omitempty"`
	Latency     time.Duration   `json:"latency"`
	// State is the input state with the user and assistant turns appended.
	State models.ConversationState `json:"-"`
	// Tasks are deferred side effects for the caller to dispatch or await.
	Tasks []background.Task `json:"-"`
}

// Resolver answers user messages. It holds no conversation state.
type Resolver struct {
	store    KnowledgeLister
	gen      generation.Generator
	usage    UsageRecorder
	learner  Learner
	patterns PatternDetector
	metrics  *metrics.Metrics
	persona  Persona
	params   generation.Params
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger. Nil means no logging.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = utils.LoggerOrNop(l) }
}

// WithMetrics records resolution counts, latencies and failures on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithTracker records a positive usage for every direct knowledge answer.
func WithTracker(u UsageRecorder) Option {
	return func(r *Resolver) { r.usage = u }
}

// WithLearner enables auto-learning of generated answers.
func WithLearner(l Learner) Option {
	return func(r *Resolver) { r.learner = l }
}

// WithPatternDetector emits a pattern detection task after generated answers.
func WithPatternDetector(p PatternDetector) Option {
	return func(r *Resolver) { r.patterns = p }
}

// WithPersona sets the assistant name and institution used in prompts.
func WithPersona(p Persona) Option {
	return func(r *Resolver) { r.persona = p }
}

// WithGenerationParams sets the sampling parameters for generation calls.
func WithGenerationParams(p generation.Params) Option {
	return func(r *Resolver) { r.params = p }
}

// WithClock overrides time.Now for latency measurement.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// New creates a Resolver.
func New(store KnowledgeLister, gen generation.Generator, opts ...Option) *Resolver {
	r := &Resolver{
		store:   store,
		gen:     gen,
		persona: DefaultPersona,
		params:  generation.Params{Temperature: 0.7, TopK: 40, TopP: 0.95, MaxOutputTokens: 1024},
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve answers message given the prior conversation state. On generation
// failure it returns the upstream_generation error and no tasks; the caller
// decides what to show the user.
func (r *Resolver) Resolve(ctx context.Context, state models.ConversationState, message string) (*Result, error) {
	const op = "resolver.Resolve"
	start := r.now()
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, errs.Validation(op, "message is empty")
	}
	label := intent.Detect(message)

	candidates, err := r.store.ListKnowledge(ctx, models.ActiveOnly(nil))
	if err != nil {
		return nil, errs.Store(op, err)
	}
	matches := scored(matcher.Rank(message, candidates))

	if len(matches) > 0 && matches[0].Confidence > DirectAnswerThreshold {
		best := matches[0]
		r.recordUsage(ctx, best.Entry.ID)
		res := &Result{
			Content:     best.Entry.Answer,
			Confidence:  best.Confidence,
			Source:      SourceKnowledgeBase,
			Intent:      label,
			KnowledgeID: best.Entry.ID,
		}
		return r.finish(state, message, start, res), nil
	}

	top := matcher.Top(matches, MaxContextEntries)
	turns := BuildPrompt(r.persona, top, state.Turns, message)
	content, err := r.gen.Generate(ctx, turns, r.params)
	if err != nil {
		r.metrics.IncGenerationFailure()
		r.logger.Warn("Generation failed",
			zap.String("conversation_id", state.ConversationID),
			zap.String("intent", string(label)),
			zap.Error(err),
		)
		if errs.KindOf(err) == "" {
			err = errs.Generation(op, 0, "generation failed", err)
		}
		return nil, err
	}

	res := &Result{Content: content, Source: SourceGeneration, Intent: label}
	if len(matches) > 0 {
		res.Source = SourceHybrid
		res.Confidence = matches[0].Confidence
	}
	if ok, reason := ShouldLearn(message, content); ok && r.learner != nil {
		res.Tasks = append(res.Tasks, r.learnTask(message, content, label))
	} else if !ok {
		r.logger.Debug("Not learning answer", zap.String("reason", reason))
	}
	if r.patterns != nil {
		res.Tasks = append(res.Tasks, background.Task{
			Name: TaskDetectPatterns,
			Run: func(ctx context.Context) error {
				_, err := r.patterns.DetectPatterns(ctx)
				return err
			},
		})
	}
	return r.finish(state, message, start, res), nil
}

func (r *Resolver) finish(state models.ConversationState, message string, start time.Time, res *Result) *Result {
	now := r.now()
	res.Latency = now.Sub(start)
	latencyMs := res.Latency.Milliseconds()
	confidence := res.Confidence
	res.State = state.Append(
		models.Message{
			ConversationID: state.ConversationID,
			Role:           models.RoleUser,
			Content:        message,
			Intent:         res.Intent,
			CreatedAt:      start,
		},
		models.Message{
			ConversationID: state.ConversationID,
			Role:           models.RoleAssistant,
			Content:        res.Content,
			Intent:         res.Intent,
			Confidence:     &confidence,
			Source:         res.Source,
			KnowledgeID:    res.KnowledgeID,
			LatencyMs:      &latencyMs,
			CreatedAt:      now,
		},
	)
	r.metrics.ObserveResolution(res.Source, res.Latency)
	r.logger.Debug("Message resolved",
		zap.String("conversation_id", state.ConversationID),
		zap.String("source", res.Source),
		zap.String("intent", string(res.Intent)),
		zap.Float64("confidence", res.Confidence),
		zap.Duration("latency", res.Latency),
	)
	return res
}

// recordUsage updates the entry's statistics. Failures are logged only.
func (r *Resolver) recordUsage(ctx context.Context, id string) {
	if r.usage == nil {
		return
	}
	if _, err := r.usage.RecordUsage(ctx, id, true); err != nil {
		r.logger.Warn("Failed to record knowledge usage", zap.String("id", id), zap.Error(err))
	}
}

func (r *Resolver) learnTask(message, answer string, label models.Category) background.Task {
	return background.Task{
		Name: TaskAutoLearn,
		Run: func(ctx context.Context) error {
			id, err := r.learner.Add(ctx, models.KnowledgeInput{
				Question:   message,
				Answer:     answer,
				Category:   string(label),
				Keywords:   LearnedKeywords(message),
				Provenance: models.ProvenanceLearned,
			})
			if err != nil {
				return err
			}
			if id != "" {
				r.metrics.IncLearned()
				r.logger.Info("Learned new knowledge entry", zap.String("id", id), zap.String("category", string(label)))
			}
			return nil
		},
	}
}

// scored drops unscored matches (a query that normalizes to nothing).
func scored(ms []matcher.Match) []matcher.Match {
	out := ms[:0]
	for _, m := range ms {
		if m.Confidence > 0 || m.Exact {
			out = append(out, m)
		}
	}
	return out
}
