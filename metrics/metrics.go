// Package metrics defines Prometheus metrics for OLT sessions and locator
// operations.
//
// Metric naming follows Prometheus conventions:
//   - onulocator_ prefix for all custom metrics
//   - _total suffix for counters
//   - _seconds suffix for duration histograms
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Session outcomes
const (
	OutcomeReady   = "ready"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Operation results
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

var (
	// SessionsTotal counts session attempts by vendor and outcome.
	SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onulocator_sessions_total",
			Help: "Total OLT sessions by vendor and outcome.",
		},
		[]string{"vendor", "outcome"},
	)

	// CommandsTotal counts commands sent to devices by result.
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onulocator_commands_total",
			Help: "Total commands sent to OLTs by result.",
		},
		[]string{"result"},
	)

	// OperationsTotal counts locator operations by name and result.
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onulocator_operations_total",
			Help: "Total locator operations by operation and result.",
		},
		[]string{"operation", "result"},
	)

	// OperationDurationSeconds is a histogram of operation duration.
	OperationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "onulocator_operation_duration_seconds",
			Help:    "Duration of locator operations in seconds.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 15, 30, 60, 120},
		},
		[]string{"operation"},
	)

	// FanoutInflight is the number of device searches currently running.
	FanoutInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "onulocator_fanout_inflight",
			Help: "Number of device searches currently in flight.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		SessionsTotal,
		CommandsTotal,
		OperationsTotal,
		OperationDurationSeconds,
		FanoutInflight,
	)
}

// RecordSession records the outcome of one session attempt.
func RecordSession(vendor, outcome string) {
	SessionsTotal.WithLabelValues(vendor, outcome).Inc()
}

// RecordCommand records one command result.
func RecordCommand(result string) {
	CommandsTotal.WithLabelValues(result).Inc()
}

// RecordOperation records a completed operation.
func RecordOperation(operation, result string, duration time.Duration) {
	OperationsTotal.WithLabelValues(operation, result).Inc()
	OperationDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
