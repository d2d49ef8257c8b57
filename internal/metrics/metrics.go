// Package metrics exposes Prometheus collectors for analysis runs and
// manual overrides.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nefron/examcheck/internal/model"
)

const namespace = "examcheck"

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// AnalysesTotal counts runs by outcome (completed, failed).
	AnalysesTotal *prometheus.CounterVec
	// RunDuration measures whole runs, labelled by phase reached.
	RunDuration *prometheus.HistogramVec
	// RowsTotal counts exam rows by fate (read, dropped, filtered_clinic,
	// unknown_exam, analysed).
	RowsTotal *prometheus.CounterVec
	// Patients is the status breakdown of the latest run.
	Patients *prometheus.GaugeVec
	// OverridesTotal counts override changes by action (added, removed).
	OverridesTotal *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		AnalysesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Analysis runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of analysis phases.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"phase"}),
		RowsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exam_rows_total",
			Help:      "Exam rows seen by the preparation step, by fate.",
		}, []string{"fate"}),
		Patients: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "patients",
			Help:      "Patients per status in the latest run.",
		}, []string{"status"}),
		OverridesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overrides_total",
			Help:      "Manual override changes by action.",
		}, []string{"action"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(sum *model.RunSummary, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.AnalysesTotal.WithLabelValues("failed").Inc()
		return
	}
	m.AnalysesTotal.WithLabelValues("completed").Inc()

	m.observePhase("import", sum.DurationImport)
	m.observePhase("prepare", sum.DurationPrepare)
	m.observePhase("evaluate", sum.DurationEvaluate)
	m.observePhase("total", sum.DurationTotal)

	m.RowsTotal.WithLabelValues("read").Add(float64(sum.RowsRead))
	m.RowsTotal.WithLabelValues("dropped").Add(float64(sum.RowsDropped))
	m.RowsTotal.WithLabelValues("filtered_clinic").Add(float64(sum.RowsFilteredClinic))
	m.RowsTotal.WithLabelValues("unknown_exam").Add(float64(sum.RowsUnknownExam))
	m.RowsTotal.WithLabelValues("analysed").Add(float64(sum.RowsAnalysed))

	m.SetPatients(sum.StatusCounts)
}

// SetPatients replaces the per-status gauge values.
func (m *Metrics) SetPatients(counts map[model.Status]int) {
	if m == nil {
		return
	}
	for _, s := range model.AllStatuses {
		m.Patients.WithLabelValues(s.String()).Set(float64(counts[s]))
	}
}

// ObserveOverride records an override change.
func (m *Metrics) ObserveOverride(action string) {
	if m == nil {
		return
	}
	m.OverridesTotal.WithLabelValues(action).Inc()
}

func (m *Metrics) observePhase(phase string, d time.Duration) {
	m.RunDuration.WithLabelValues(phase).Observe(d.Seconds())
}
