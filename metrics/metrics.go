// Package metrics provides Prometheus metrics for the edge gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for gateway operations.
// A nil *Metrics is a valid no-op instance.
type Metrics struct {
	enabled bool

	// Rate limiting metrics
	admissionsTotal *prometheus.CounterVec
	blacklistTotal  *prometheus.CounterVec

	// Session metrics
	resolutionsTotal *prometheus.CounterVec
	refreshTotal     *prometheus.CounterVec
	refreshDuration  prometheus.Histogram

	// Verification metrics
	verificationsTotal *prometheus.CounterVec
}

// New creates and registers Prometheus metrics.
// If enabled is false, returns a no-op Metrics instance.
func New(enabled bool) *Metrics {
	m := &Metrics{enabled: enabled}

	if !enabled {
		return m
	}

	m.admissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_ratelimit_admissions_total",
		Help: "Rate limiter decisions",
	}, []string{"purpose", "result"})

	m.blacklistTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_ratelimit_blacklist_total",
		Help: "Requests denied by the static IP blacklist",
	}, []string{"purpose"})

	m.resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_session_resolutions_total",
		Help: "Session resolutions by terminal state",
	}, []string{"state"})

	m.refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_token_refresh_total",
		Help: "Token refresh attempts by outcome",
	}, []string{"outcome"})

	m.refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_token_refresh_duration_seconds",
		Help:    "Token refresh round-trip duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	m.verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_email_verifications_total",
		Help: "Email verification outcomes",
	}, []string{"result"})

	return m
}

// RecordAdmission records a rate limiter decision.
func (m *Metrics) RecordAdmission(purpose string, allowed bool) {
	if m == nil || !m.enabled {
		return
	}
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.admissionsTotal.WithLabelValues(purpose, result).Inc()
}

// RecordBlacklist records a static blacklist denial.
func (m *Metrics) RecordBlacklist(purpose string) {
	if m == nil || !m.enabled {
		return
	}
	m.blacklistTotal.WithLabelValues(purpose).Inc()
}

// RecordResolution records a session resolution terminal state
// (none, malformed, expired, valid, refreshed, stale).
func (m *Metrics) RecordResolution(state string) {
	if m == nil || !m.enabled {
		return
	}
	m.resolutionsTotal.WithLabelValues(state).Inc()
}

// RecordRefresh records a token refresh attempt.
func (m *Metrics) RecordRefresh(outcome string, durationSeconds float64) {
	if m == nil || !m.enabled {
		return
	}
	m.refreshTotal.WithLabelValues(outcome).Inc()
	m.refreshDuration.Observe(durationSeconds)
}

// RecordVerification records an email verification outcome.
func (m *Metrics) RecordVerification(result string) {
	if m == nil || !m.enabled {
		return
	}
	m.verificationsTotal.WithLabelValues(result).Inc()
}
