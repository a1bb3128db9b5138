// Package metrics holds the prometheus collectors for authentication and
// request-security events. Collectors register on the default registry and
// are served by promhttp at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ventureflow_login_attempts_total",
			Help: "Login attempts by outcome (granted, denied, error).",
		},
		[]string{"outcome"},
	)

	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ventureflow_registrations_total",
			Help: "Registration attempts by outcome (created, rejected, error).",
		},
		[]string{"outcome"},
	)

	SessionOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ventureflow_session_operations_total",
			Help: "Session store operations (create, destroy, swept, evicted).",
		},
		[]string{"operation"},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ventureflow_rate_limited_total",
			Help: "Requests rejected by a rate limiter.",
		},
		[]string{"limiter"},
	)

	CSRFRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ventureflow_csrf_rejections_total",
			Help: "Requests rejected for a missing or wrong CSRF header.",
		},
	)

	AuditEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ventureflow_audit_events_total",
			Help: "Audit events recorded by category.",
		},
		[]string{"category"},
	)

	AuditFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ventureflow_audit_store_failures_total",
			Help: "Audit events that could not be persisted.",
		},
	)

	PasswordHashDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ventureflow_password_hash_duration_seconds",
			Help:    "Time spent deriving scrypt keys.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)
)
