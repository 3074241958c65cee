package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics are the process's Prometheus collectors.
type Metrics struct {
	Registry *prometheus.Registry

	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	queriesTotal               *prometheus.CounterVec
	stageDurationSeconds       *prometheus.HistogramVec
	scriptStepsTotal           prometheus.Counter
	datasetRows                prometheus.Gauge
}

// NewMetrics creates the collectors on a fresh registry that also carries the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insight_http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "insight_http_request_duration_seconds",
				Help:    "HTTP request latency by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		queriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insight_queries_total",
				Help: "Natural-language queries by outcome.",
			},
			[]string{"outcome"},
		),
		stageDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "insight_query_stage_duration_seconds",
				Help:    "Query pipeline stage latency.",
				Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		scriptStepsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "insight_script_steps_total",
				Help: "Interpreter steps executed by analysis scripts.",
			},
		),
		datasetRows: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "insight_dataset_rows",
				Help: "Rows in the most recently loaded dataset.",
			},
		),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDurationSeconds,
		m.queriesTotal,
		m.stageDurationSeconds,
		m.scriptStepsTotal,
		m.datasetRows,
	)
	return m
}

// ObserveStage records how long a pipeline stage took. Safe on a nil
// receiver.
func (m *Metrics) ObserveStage(stage string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stageDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// ObserveQuery counts a finished query by outcome ("ok" or an error kind).
func (m *Metrics) ObserveQuery(outcome string) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(outcome).Inc()
}

// AddScriptSteps adds executed interpreter steps.
func (m *Metrics) AddScriptSteps(steps uint64) {
	if m == nil {
		return
	}
	m.scriptStepsTotal.Add(float64(steps))
}

// SetDatasetRows records the size of the latest dataset.
func (m *Metrics) SetDatasetRows(n int) {
	if m == nil {
		return
	}
	m.datasetRows.Set(float64(n))
}
