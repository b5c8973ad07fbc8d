// Package metrics defines and registers the custom Prometheus metrics of the
// natours API. It is the single source of truth for metric names, labels and
// help strings.
//
// All metrics register with the default registry on package init through
// promauto; HTTP request metrics come from the echoprometheus middleware.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "natours"

// ── Auth metrics ─────────────────────────────────────────────────────────────

// AuthOperationsTotal counts account lifecycle calls.
// Labels:
//   - operation: signup, login, change_password, forgot_password, reset_password, authenticate
//   - outcome: "success" or the error kind (e.g. "authentication", "internal")
var AuthOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_operations_total",
		Help:      "Total number of authentication operations, by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)

// ResetEmailsTotal counts reset notification attempts.
// Label:
//   - result: "sent" or "failed"
var ResetEmailsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reset_emails_total",
		Help:      "Total number of password reset notifications, by delivery result.",
	},
	[]string{"result"},
)

// PasswordHashDuration measures bcrypt work including time spent queued.
// Label:
//   - op: "hash" or "verify"
var PasswordHashDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "password_hash_duration_seconds",
		Help:      "Duration of password hashing and verification, queue wait included.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
	},
	[]string{"op"},
)

// ── Worker pool metrics ──────────────────────────────────────────────────────

// WorkerPoolQueueDepth tracks jobs waiting for a hashing worker.
var WorkerPoolQueueDepth = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "workerpool_queue_depth",
		Help:      "Current number of jobs waiting in the CPU worker pool.",
	},
)

// WorkerPoolRejectedTotal counts jobs that could not start within the caller's budget.
var WorkerPoolRejectedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "workerpool_rejected_total",
		Help:      "Total number of jobs abandoned because the caller's budget ran out.",
	},
)

// ── Rate limit metrics ───────────────────────────────────────────────────────

// RateLimitedTotal counts requests rejected by the per-client limiter.
var RateLimitedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Total number of requests rejected by the rate limiter.",
	},
)
