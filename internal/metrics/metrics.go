package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "legallens"

// Metrics groups the collectors updated by the analysis pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Runs             *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	ContextFallbacks prometheus.Counter
	CacheLookups     *prometheus.CounterVec
	AssistantAnswers *prometheus.CounterVec
}

// New registers the collectors with reg. Passing nil uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analysis_runs_total",
				Help:      "Total number of analysis runs by variant and terminal state",
			},
			[]string{"variant", "state"},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stages in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage", "outcome"},
		),
		ContextFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "context_fallbacks_total",
				Help:      "Total number of market context retrievals replaced by the fallback brief",
			},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "context_cache_lookups_total",
				Help:      "Market context cache lookups by result",
			},
			[]string{"result"},
		),
		AssistantAnswers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "assistant_answers_total",
				Help:      "Follow-up questions answered by outcome",
			},
			[]string{"outcome"},
		),
	}
}

func (m *Metrics) ObserveRun(variant, state string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(variant, state).Inc()
}

func (m *Metrics) ObserveStage(stage, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage, outcome).Observe(d.Seconds())
}

func (m *Metrics) ObserveFallback() {
	if m == nil {
		return
	}
	m.ContextFallbacks.Inc()
}

// ObserveCache records a cache lookup: hit, miss or error.
func (m *Metrics) ObserveCache(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveAnswer(outcome string) {
	if m == nil {
		return
	}
	m.AssistantAnswers.WithLabelValues(outcome).Inc()
}
