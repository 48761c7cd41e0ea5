// Package metrics exposes Prometheus collectors for the auth service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "auth"

var (
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10),
		},
		[]string{"method", "path"},
	)

	// LoginAttemptsTotal outcome: success, invalid_credentials, account_locked, not_verified, error.
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Password login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	AccountLocksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_locks_total",
			Help:      "Number of times an account transitioned to locked.",
		},
	)

	PinIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pin_issued_total",
			Help:      "PIN issuance attempts by purpose, channel, and result.",
		},
		[]string{"purpose", "channel", "result"},
	)

	PinChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pin_checks_total",
			Help:      "PIN confirmations by purpose and outcome.",
		},
		[]string{"purpose", "outcome"},
	)

	PinsReapedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pins_reaped_total",
			Help:      "Stale PIN rows deleted by the reaper.",
		},
	)
)
