// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	EventsFetched  *prometheus.CounterVec
	EventsSkipped  *prometheus.CounterVec
	ArchiveWrites  *prometheus.CounterVec
	ErrorsTotal    *prometheus.CounterVec
	RPCCallLatency *prometheus.HistogramVec

	// Refresh metrics
	RefreshCycles        *prometheus.CounterVec
	RefreshDuration      prometheus.Histogram
	CurrentTransactions  prometheus.Gauge
	LastSuccessfulUpdate prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "reward_ledger"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Ingestion metrics
		EventsFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_fetched_total",
			Help:      "Total number of raw ledger events fetched by kind",
		}, []string{"kind"}),
		EventsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_skipped_total",
			Help:      "Total number of malformed events skipped by kind",
		}, []string{"kind"}),
		ArchiveWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "archive_writes_total",
			Help:      "Total number of archive batch writes by backend and status",
		}, []string{"backend", "status"}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of errors by component",
		}, []string{"component"}),
		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "rpc_call_latency_seconds",
			Help:      "Ledger RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Refresh metrics
		RefreshCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "cycles_total",
			Help:      "Total number of refresh cycles by trigger and status",
		}, []string{"trigger", "status"}),
		RefreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "cycle_duration_seconds",
			Help:      "Refresh cycle duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		CurrentTransactions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "current_transactions",
			Help:      "Number of transactions in the current set",
		}),
		LastSuccessfulUpdate: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "last_successful_update_timestamp",
			Help:      "Unix timestamp of the last successful refresh",
		}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordEventsFetched adds n to the fetched counter for kind.
func RecordEventsFetched(kind string, n int) {
	DefaultMetrics.EventsFetched.WithLabelValues(kind).Add(float64(n))
}

// RecordEventSkipped increments the malformed event counter for kind.
func RecordEventSkipped(kind string) {
	DefaultMetrics.EventsSkipped.WithLabelValues(kind).Inc()
}

// RecordArchiveWrite records one archive batch write.
func RecordArchiveWrite(backend string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		RecordError("archive")
	}
	DefaultMetrics.ArchiveWrites.WithLabelValues(backend, status).Inc()
}

// RecordError increments the error counter for component.
func RecordError(component string) {
	DefaultMetrics.ErrorsTotal.WithLabelValues(component).Inc()
}

// RecordRPCLatency records ledger RPC call latency. It matches sui.LatencyObserver.
func RecordRPCLatency(method string, d time.Duration, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(d.Seconds())
	if err != nil {
		RecordError("rpc")
	}
}

// RecordRefreshCycle records a finished refresh cycle.
func RecordRefreshCycle(trigger string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		RecordError("refresh")
	}
	DefaultMetrics.RefreshCycles.WithLabelValues(trigger, status).Inc()
	DefaultMetrics.RefreshDuration.Observe(d.Seconds())
}

// UpdateCurrentSet updates the current set gauges after a successful refresh.
func UpdateCurrentSet(n int, at time.Time) {
	DefaultMetrics.CurrentTransactions.Set(float64(n))
	DefaultMetrics.LastSuccessfulUpdate.Set(float64(at.Unix()))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, d time.Duration, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(d.Seconds())
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
