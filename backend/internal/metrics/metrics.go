// Package metrics provides Prometheus metrics for the social graph engine.
//
// Usage:
//
//	start := time.Now()
//	...
//	metrics.RecordOperation("follow", "ok", time.Since(start))
//	metrics.RecordBackfill("hashtag_posts", 3)
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationDuration tracks engine operation latency by operation and outcome.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "socialgraph_operation_duration_seconds",
			Help:    "Duration of social graph operations in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation", "outcome"},
	)

	// OperationFailuresTotal counts operations that did not finish Ok.
	OperationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socialgraph_operation_failures_total",
			Help: "Total number of social graph operations that failed",
		},
		[]string{"operation", "outcome"},
	)

	// BackfillItemsTotal counts items appended by popularity backfill, per flow.
	BackfillItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socialgraph_backfill_items_total",
			Help: "Total number of items added to ranked pages by backfill",
		},
		[]string{"flow"},
	)

	// TxnRetriesTotal counts transactions retried after a commit conflict.
	TxnRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socialgraph_txn_retries_total",
			Help: "Total number of transactions retried after a conflict",
		},
		[]string{"operation"},
	)

	// NotificationsTotal counts notification publishes by result.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socialgraph_notifications_total",
			Help: "Total number of notification publish attempts",
		},
		[]string{"result"},
	)
)

// RecordOperation records one finished operation.
func RecordOperation(operation, outcome string, d time.Duration) {
	OperationDuration.WithLabelValues(operation, outcome).Observe(d.Seconds())
	if outcome != "ok" {
		OperationFailuresTotal.WithLabelValues(operation, outcome).Inc()
	}
}

// RecordBackfill records n items appended by backfill. Zero is ignored.
func RecordBackfill(flow string, n int) {
	if n <= 0 {
		return
	}
	BackfillItemsTotal.WithLabelValues(flow).Add(float64(n))
}

func RecordRetry(operation string) {
	TxnRetriesTotal.WithLabelValues(operation).Inc()
}

func RecordNotification(result string) {
	NotificationsTotal.WithLabelValues(result).Inc()
}
