// Package metrics exposes Prometheus collectors for the scoring pipeline.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spigell/fitscore/internal/ai"
)

// Metric names as constants for consistency.
const (
	MetricEvaluatorCallsTotal   = "fitscore_evaluator_calls_total"
	MetricEvaluatorCallDuration = "fitscore_evaluator_call_duration_seconds"
	MetricCacheLookupsTotal     = "fitscore_cache_lookups_total"
	MetricScoringRunsTotal      = "fitscore_scoring_runs_total"
	MetricFinalScore            = "fitscore_final_score"
)

// Status and result label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"

	ResultHit  = "hit"
	ResultMiss = "miss"
)

// Metrics contains the pipeline collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	evaluatorCalls    *prometheus.CounterVec
	evaluatorDuration *prometheus.HistogramVec
	cacheLookups      *prometheus.CounterVec
	scoringRuns       *prometheus.CounterVec
	finalScore        prometheus.Histogram
}

// NewMetrics creates the collectors. Call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		evaluatorCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricEvaluatorCallsTotal,
				Help: "Total number of semantic evaluator calls by provider, phase and status",
			},
			[]string{"provider", "phase", "status"},
		),
		evaluatorDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricEvaluatorCallDuration,
				Help:    "Histogram of semantic evaluator call latency in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"provider", "phase"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCacheLookupsTotal,
				Help: "Total number of phase cache lookups by phase and result",
			},
			[]string{"phase", "result"},
		),
		scoringRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricScoringRunsTotal,
				Help: "Total number of resume scoring runs by status",
			},
			[]string{"status"},
		),
		finalScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricFinalScore,
				Help:    "Distribution of final fit scores",
				Buckets: prometheus.LinearBuckets(10, 10, 10),
			},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.evaluatorCalls,
		m.evaluatorDuration,
		m.cacheLookups,
		m.scoringRuns,
		m.finalScore,
	}
}

// ObserveEvaluation records one evaluator call.
func (m *Metrics) ObserveEvaluation(provider string, phase ai.Phase, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	m.evaluatorCalls.WithLabelValues(provider, phase.String(), status).Inc()
	m.evaluatorDuration.WithLabelValues(provider, phase.String()).Observe(elapsed.Seconds())
}

// CacheLookup records a phase cache hit or miss.
func (m *Metrics) CacheLookup(phase string, hit bool) {
	if m == nil {
		return
	}
	result := ResultMiss
	if hit {
		result = ResultHit
	}
	m.cacheLookups.WithLabelValues(phase, result).Inc()
}

// ObserveRun records the outcome of a full scoring run.
func (m *Metrics) ObserveRun(score float64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.scoringRuns.WithLabelValues(StatusFailure).Inc()
		return
	}
	m.scoringRuns.WithLabelValues(StatusSuccess).Inc()
	m.finalScore.Observe(score)
}

// InstrumentEvaluator wraps next so every call is counted and timed.
func (m *Metrics) InstrumentEvaluator(provider string, next ai.Evaluator) ai.Evaluator {
	if m == nil {
		return next
	}
	return ai.EvaluatorFunc(func(ctx context.Context, req ai.Request) (string, error) {
		start := time.Now()
		out, err := next.Evaluate(ctx, req)
		m.ObserveEvaluation(provider, req.Phase, time.Since(start), err)
		return out, err
	})
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
