// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the scanner.
type Metrics struct {
	// Scan metrics
	ScansTotal            *prometheus.CounterVec
	ScanDuration          prometheus.Histogram
	BlocksScanned         prometheus.Counter
	TransactionsDecrypted prometheus.Counter

	// Provider metrics
	RPCCallsTotal    *prometheus.CounterVec
	RPCCallLatency   *prometheus.HistogramVec
	FailoverEvents   prometheus.Counter
	ProviderFailures *prometheus.CounterVec

	// Cache metrics
	CacheOps *prometheus.CounterVec
}

// New creates a Metrics instance registered against reg.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "zscan"
	}
	factory := promauto.With(reg)

	return &Metrics{
		ScansTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "requests_total",
			Help:      "Total number of scan requests by outcome",
		}, []string{"status"}),
		ScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "duration_seconds",
			Help:      "Scan request duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		BlocksScanned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "blocks_total",
			Help:      "Total number of block heights processed",
		}),
		TransactionsDecrypted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "transactions_decrypted_total",
			Help:      "Total number of transactions matched against a viewing key",
		}),
		RPCCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "Total number of RPC operations by method and outcome",
		}, []string{"method", "outcome"}),
		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_seconds",
			Help:      "RPC operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		FailoverEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "failover_events_total",
			Help:      "Total number of sticky provider switches",
		}),
		ProviderFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "provider_failures_total",
			Help:      "Total number of per-provider failures by class",
		}, []string{"class"}),
		CacheOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "ops_total",
			Help:      "Total cache reads by entity kind and outcome",
		}, []string{"kind", "outcome"}),
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = New("", prometheus.DefaultRegisterer)

// RecordScan records a completed scan request.
func RecordScan(status string, durationSeconds float64) {
	DefaultMetrics.ScansTotal.WithLabelValues(status).Inc()
	DefaultMetrics.ScanDuration.Observe(durationSeconds)
}

// RecordBlockScanned increments the processed height counter.
func RecordBlockScanned() {
	DefaultMetrics.BlocksScanned.Inc()
}

// RecordTransactionsDecrypted adds to the matched transaction counter.
func RecordTransactionsDecrypted(n int) {
	DefaultMetrics.TransactionsDecrypted.Add(float64(n))
}

// RecordRPCCall records one RPC operation.
func RecordRPCCall(method, outcome string, seconds float64) {
	DefaultMetrics.RPCCallsTotal.WithLabelValues(method, outcome).Inc()
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordFailover records a sticky provider switch.
func RecordFailover() {
	DefaultMetrics.FailoverEvents.Inc()
}

// RecordProviderFailure records a per-provider failure by class.
func RecordProviderFailure(class string) {
	DefaultMetrics.ProviderFailures.WithLabelValues(class).Inc()
}

// RecordCacheOp records a cache read outcome ("hit" or "miss").
func RecordCacheOp(kind, outcome string) {
	DefaultMetrics.CacheOps.WithLabelValues(kind, outcome).Inc()
}
