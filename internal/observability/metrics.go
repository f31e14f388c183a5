// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eb-evaluation-lab/internal/domain"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Evaluation metrics
	CandidatesEvaluated prometheus.Counter
	SeriesSelected      prometheus.Counter
	SelectionFailures   *prometheus.CounterVec
	CandidatesRejected  prometheus.Counter
	SeriesServed        *prometheus.CounterVec

	// Sweep metrics
	SweepSteps      prometheus.Counter
	BoundariesFound prometheus.Counter
	StableSeries    prometheus.Counter

	// Hierarchy and robustness metrics
	GroupDecisions  *prometheus.CounterVec
	InversionMean   *prometheus.GaugeVec
	TopOneAgreement *prometheus.GaugeVec

	// Run metrics
	RunsTotal     *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	PhaseDuration *prometheus.HistogramVec

	// Storage metrics
	StoreDuration *prometheus.HistogramVec
	StoreErrors   *prometheus.CounterVec

	// Server metrics
	SweepStreamsActive prometheus.Gauge

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered on reg.
// Tests pass a fresh prometheus.NewRegistry().
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "eb_evaluation_lab"
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Evaluation metrics
		CandidatesEvaluated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "selection",
			Name:      "candidates_evaluated_total",
			Help:      "Total number of (series, model) candidates scored",
		}),
		SeriesSelected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "selection",
			Name:      "series_selected_total",
			Help:      "Total number of series with a selection decision",
		}),
		SelectionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "selection",
			Name:      "failures_total",
			Help:      "Total number of per-series selection failures by kind",
		}, []string{"kind"}),
		CandidatesRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "governance",
			Name:      "candidates_rejected_total",
			Help:      "Total number of candidates rejected by the governance gate",
		}),
		SeriesServed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "serving",
			Name:      "series_served_total",
			Help:      "Total number of served series by source",
		}, []string{"source"}),

		// Sweep metrics
		SweepSteps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "steps_total",
			Help:      "Total number of cost-ratio sweep steps evaluated",
		}),
		BoundariesFound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "boundaries_found_total",
			Help:      "Total number of decision boundaries found by sweeps",
		}),
		StableSeries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "stable_series_total",
			Help:      "Total number of series whose choice never changed across the sweep",
		}),

		// Hierarchy and robustness metrics
		GroupDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hierarchy",
			Name:      "group_decisions_total",
			Help:      "Total number of hierarchy node decisions by rule",
		}, []string{"rule"}),
		InversionMean: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "robustness",
			Name:      "inversion_mean",
			Help:      "Mean rank inversions against the baseline metric in the last run",
		}, []string{"baseline"}),
		TopOneAgreement: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "robustness",
			Name:      "top_one_agreement",
			Help:      "Fraction of series whose winner equals the baseline winner in the last run",
		}, []string{"baseline"}),

		// Run metrics
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "runs_total",
			Help:      "Total number of evaluation runs by status",
		}, []string{"status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Evaluation run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),
		PhaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "phase_duration_seconds",
			Help:      "Evaluation phase duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase"}),

		// Storage metrics
		StoreDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "operation_duration_seconds",
			Help:      "Store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store", "operation"}),
		StoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "operation_errors_total",
			Help:      "Total number of store operation errors",
		}, []string{"store", "operation"}),

		// Server metrics
		SweepStreamsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "sweep_streams_active",
			Help:      "Number of open sweep WebSocket streams",
		}),

		// Health metrics
		LastSuccessfulRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful evaluation run",
		}),
	}
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide metrics registered on the default registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = NewMetrics("", prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// Handler returns an HTTP handler for the /metrics endpoint of the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns an HTTP handler serving the metrics of g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// FailureKind maps a selection error to a low-cardinality label.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoCandidates):
		return "no_candidates"
	case errors.Is(err, domain.ErrDuplicateCandidate):
		return "duplicate_candidate"
	case errors.Is(err, domain.ErrIncomparableCandidates):
		return "incomparable_candidates"
	case errors.Is(err, domain.ErrInvalidCostSpec):
		return "invalid_cost_spec"
	case errors.Is(err, domain.ErrInvalidReadinessSpec):
		return "invalid_readiness_spec"
	default:
		return "other"
	}
}

// RecordSelection records the outcome of one series selection.
func (m *Metrics) RecordSelection(candidates int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SelectionFailures.WithLabelValues(FailureKind(err)).Inc()
		return
	}
	m.CandidatesEvaluated.Add(float64(candidates))
	m.SeriesSelected.Inc()
}

// RecordSweep records the steps and boundaries of one series sweep.
func (m *Metrics) RecordSweep(steps, boundaries int, stable bool) {
	if m == nil {
		return
	}
	m.SweepSteps.Add(float64(steps))
	m.BoundariesFound.Add(float64(boundaries))
	if stable {
		m.StableSeries.Inc()
	}
}

// RecordRejected records candidates rejected by the governance gate.
func (m *Metrics) RecordRejected(n int) {
	if m == nil {
		return
	}
	m.CandidatesRejected.Add(float64(n))
}

// RecordServed records served series per source.
func (m *Metrics) RecordServed(counts map[string]int) {
	if m == nil {
		return
	}
	for source, n := range counts {
		m.SeriesServed.WithLabelValues(source).Add(float64(n))
	}
}

// RecordGroupDecisions records hierarchy node decisions for a rule.
func (m *Metrics) RecordGroupDecisions(rule domain.AggregationRule, n int) {
	if m == nil {
		return
	}
	m.GroupDecisions.WithLabelValues(string(rule)).Add(float64(n))
}

// RecordRobustness publishes the headline robustness figures of a run.
func (m *Metrics) RecordRobustness(s *domain.RobustnessSummary) {
	if m == nil || s == nil {
		return
	}
	m.InversionMean.WithLabelValues(s.Baseline).Set(s.InversionMean)
	m.TopOneAgreement.WithLabelValues(s.Baseline).Set(s.TopOneAgreement)
}

// RecordPhase records the duration of one run phase.
func (m *Metrics) RecordPhase(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(status string, d time.Duration, finishedAt time.Time) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(d.Seconds())
	if status == StatusSuccess {
		m.LastSuccessfulRun.Set(float64(finishedAt.Unix()))
	}
}

// RecordStore records store operation metrics.
func (m *Metrics) RecordStore(store, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.StoreDuration.WithLabelValues(store, operation).Observe(d.Seconds())
	if err != nil {
		m.StoreErrors.WithLabelValues(store, operation).Inc()
	}
}

// Run statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// SweepStreamStarted records an opened sweep stream.
func (m *Metrics) SweepStreamStarted() {
	if m == nil {
		return
	}
	m.SweepStreamsActive.Inc()
}

// SweepStreamEnded records a closed sweep stream.
func (m *Metrics) SweepStreamEnded() {
	if m == nil {
		return
	}
	m.SweepStreamsActive.Dec()
}
