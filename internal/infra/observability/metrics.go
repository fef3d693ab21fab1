package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the importer.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	operationDuration    *prometheus.HistogramVec
	transactionsImported *prometheus.CounterVec
	normalizedTotal      *prometheus.CounterVec
	fallbacksTotal       prometheus.Counter
	challengesTotal      prometheus.Counter
	externalErrors       *prometheus.CounterVec
	malformedDocuments   *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "importer_operation_duration_seconds",
				Help:    "Duration of workflow operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		transactionsImported: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "importer_transactions_imported_total",
				Help: "Transactions submitted to the ledger, by result.",
			},
			[]string{"result"},
		),
		normalizedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "importer_transactions_normalized_total",
				Help: "Transactions normalized from bank statements, by source format.",
			},
			[]string{"format"},
		),
		fallbacksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "importer_format_fallbacks_total",
				Help: "Statement requests retried in the legacy format.",
			},
		),
		challengesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "importer_tan_challenges_total",
				Help: "TAN challenges posed during statement retrieval.",
			},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "importer_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		malformedDocuments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "importer_malformed_documents_total",
				Help: "Statement documents that failed to parse, by format.",
			},
			[]string{"format"},
		),
	}
}

// RecordOperationDuration records the duration of a workflow operation.
func (m *Metrics) RecordOperationDuration(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrImported counts one ledger submission result ("success",
// "duplicate" or "error").
func (m *Metrics) IncrImported(result string) {
	m.transactionsImported.WithLabelValues(result).Inc()
}

// AddNormalized counts normalized transactions for a source format.
func (m *Metrics) AddNormalized(format string, n int) {
	m.normalizedTotal.WithLabelValues(format).Add(float64(n))
}

// IncrFallback counts a format fallback retry.
func (m *Metrics) IncrFallback() {
	m.fallbacksTotal.Inc()
}

// IncrChallenge counts a posed TAN challenge.
func (m *Metrics) IncrChallenge() {
	m.challengesTotal.Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrMalformedDocument counts an unparsable statement document.
func (m *Metrics) IncrMalformedDocument(format string) {
	m.malformedDocuments.WithLabelValues(format).Inc()
}

// ImportStats is a snapshot of import counters for the stats endpoint.
type ImportStats struct {
	Imported        int64 `json:"imported"`
	Duplicates      int64 `json:"duplicates"`
	Errors          int64 `json:"errors"`
	NormalizedCAMT  int64 `json:"normalized_camt"`
	NormalizedMT940 int64 `json:"normalized_mt940"`
	Fallbacks       int64 `json:"fallbacks"`
	Challenges      int64 `json:"challenges"`
}

// Snapshot reads the current counter values for GET /v1/stats.
func (m *Metrics) Snapshot() ImportStats {
	return ImportStats{
		Imported:        int64(counterValue(m.transactionsImported.WithLabelValues("success"))),
		Duplicates:      int64(counterValue(m.transactionsImported.WithLabelValues("duplicate"))),
		Errors:          int64(counterValue(m.transactionsImported.WithLabelValues("error"))),
		NormalizedCAMT:  int64(counterValue(m.normalizedTotal.WithLabelValues("camt"))),
		NormalizedMT940: int64(counterValue(m.normalizedTotal.WithLabelValues("mt940"))),
		Fallbacks:       int64(counterValue(m.fallbacksTotal)),
		Challenges:      int64(counterValue(m.challengesTotal)),
	}
}

// counterValue extracts the current float64 value from a counter.
func counterValue(c prometheus.Counter) float64 {
	metric := &dto.Metric{}
	if err := c.Write(metric); err != nil {
		return 0
	}
	if metric.Counter != nil && metric.Counter.Value != nil {
		return *metric.Counter.Value
	}
	return 0
}
