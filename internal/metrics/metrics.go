// Package metrics exposes Prometheus collectors for the ledger.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the ledger's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	transfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet_ledger",
			Subsystem: "transfers",
			Name:      "total",
			Help:      "Transfers by terminal outcome.",
		},
		[]string{"outcome"},
	)

	transferDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wallet_ledger",
			Subsystem: "transfers",
			Name:      "duration_seconds",
			Help:      "End-to-end duration of transfer calls.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14), // 100µs to ~1.6s
		},
		[]string{"outcome"},
	)

	lockWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "wallet_ledger",
			Subsystem: "locks",
			Name:      "wait_seconds",
			Help:      "Time spent waiting for account locks.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
	)

	eventPublishFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wallet_ledger",
			Subsystem: "events",
			Name:      "publish_failures_total",
			Help:      "TransactionCompleted events that could not be published.",
		},
	)
)

func init() {
	Registry.MustRegister(
		transfers,
		transferDuration,
		lockWait,
		eventPublishFailures,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func RecordTransfer(outcome string, d time.Duration) {
	transfers.WithLabelValues(outcome).Inc()
	transferDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func RecordLockWait(d time.Duration) {
	lockWait.Observe(d.Seconds())
}

func RecordPublishFailure() {
	eventPublishFailures.Inc()
}
