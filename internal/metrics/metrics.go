// Package metrics defines Prometheus metrics for answer resolution.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the campusbot collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ResolutionsTotal       *prometheus.CounterVec
	ResolutionDuration     *prometheus.HistogramVec
	GenerationFailures     prometheus.Counter
	LearnedEntriesTotal    prometheus.Counter
	BackgroundTaskFailures *prometheus.CounterVec
}

// New creates unregistered collectors.
func New() *Metrics {
	return &Metrics{
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campusbot_resolutions_total",
				Help: "Total number of resolved messages by answer source.",
			},
			[]string{"source"},
		),
		ResolutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "campusbot_resolution_duration_seconds",
				Help:    "Time to resolve a message in seconds, by answer source.",
				Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"source"},
		),
		GenerationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campusbot_generation_failures_total",
			Help: "Total number of failed generation calls.",
		}),
		LearnedEntriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campusbot_learned_entries_total",
			Help: "Total number of knowledge entries created by auto-learning.",
		}),
		BackgroundTaskFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campusbot_background_task_failures_total",
				Help: "Total number of failed background tasks by task name.",
			},
			[]string{"task"},
		),
	}
}

// RegisterWith registers m with reg.
func RegisterWith(reg prometheus.Registerer, m *Metrics) error {
	collectors := []prometheus.Collector{
		m.ResolutionsTotal,
		m.ResolutionDuration,
		m.GenerationFailures,
		m.LearnedEntriesTotal,
		m.BackgroundTaskFailures,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveResolution counts a resolution and records its latency.
func (m *Metrics) ObserveResolution(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(source).Inc()
	m.ResolutionDuration.WithLabelValues(source).Observe(d.Seconds())
}

// IncGenerationFailure counts a failed generation call.
func (m *Metrics) IncGenerationFailure() {
	if m == nil {
		return
	}
	m.GenerationFailures.Inc()
}

// IncLearned counts an auto-learned knowledge entry.
func (m *Metrics) IncLearned() {
	if m == nil {
		return
	}
	m.LearnedEntriesTotal.Inc()
}

// IncTaskFailure counts a failed or panicking background task.
func (m *Metrics) IncTaskFailure(task string) {
	if m == nil {
		return
	}
	m.BackgroundTaskFailures.WithLabelValues(task).Inc()
}
