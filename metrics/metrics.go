// Package metrics provides Prometheus metrics for authentication operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the auth subsystem.
type Metrics struct {
	enabled bool

	// Flow metrics
	registerTotal       *prometheus.CounterVec
	loginTotal          *prometheus.CounterVec
	challengeTotal      *prometheus.CounterVec
	sessionChecksTotal  *prometheus.CounterVec

	// Guard metrics
	guardDecisionsTotal *prometheus.CounterVec

	// Provider metrics
	providerCallDuration *prometheus.HistogramVec

	// Signing-key cache metrics
	keyCacheHitsTotal   prometheus.Counter
	keyCacheMissTotal   prometheus.Counter
	keyRefreshTotal     *prometheus.CounterVec
}

// New creates and registers Prometheus metrics.
// If enabled is false, returns a no-op Metrics instance.
func New(enabled bool) *Metrics {
	m := &Metrics{enabled: enabled}

	if !enabled {
		return m
	}

	m.registerTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_register_total",
		Help: "Total account registration attempts",
	}, []string{"outcome"})

	m.loginTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_login_total",
		Help: "Total login attempts",
	}, []string{"outcome"})

	m.challengeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_challenge_responses_total",
		Help: "Total password-challenge resolutions",
	}, []string{"outcome"})

	m.sessionChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_session_checks_total",
		Help: "Total session validations",
	}, []string{"outcome"})

	m.guardDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_guard_decisions_total",
		Help: "Total access-guard decisions",
	}, []string{"guard", "decision"})

	m.providerCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "auth_provider_call_duration_seconds",
		Help:    "Identity provider call duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	m.keyCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_signing_key_cache_hits_total",
		Help: "Total signing-key cache hits",
	})

	m.keyCacheMissTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_signing_key_cache_misses_total",
		Help: "Total signing-key cache misses",
	})

	m.keyRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_signing_key_refreshes_total",
		Help: "Total signing-key set refreshes",
	}, []string{"outcome"})

	return m
}

// RecordRegister records a registration outcome (created, conflict, error).
func (m *Metrics) RecordRegister(outcome string) {
	if !m.enabled {
		return
	}
	m.registerTotal.WithLabelValues(outcome).Inc()
}

// RecordLogin records a login outcome
// (authenticated, challenge, invalid_credentials, error).
func (m *Metrics) RecordLogin(outcome string) {
	if !m.enabled {
		return
	}
	m.loginTotal.WithLabelValues(outcome).Inc()
}

// RecordChallenge records a password-challenge resolution outcome
// (resolved, invalid_session, error).
func (m *Metrics) RecordChallenge(outcome string) {
	if !m.enabled {
		return
	}
	m.challengeTotal.WithLabelValues(outcome).Inc()
}

// RecordSessionCheck records a session validation outcome (valid, invalid).
func (m *Metrics) RecordSessionCheck(outcome string) {
	if !m.enabled {
		return
	}
	m.sessionChecksTotal.WithLabelValues(outcome).Inc()
}

// RecordGuardDecision records an access-guard allow/deny decision.
func (m *Metrics) RecordGuardDecision(guard string, allowed bool) {
	if !m.enabled {
		return
	}
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	m.guardDecisionsTotal.WithLabelValues(guard, decision).Inc()
}

// ObserveProviderCall records the duration of one identity provider call.
func (m *Metrics) ObserveProviderCall(op string, seconds float64) {
	if !m.enabled {
		return
	}
	m.providerCallDuration.WithLabelValues(op).Observe(seconds)
}

// RecordKeyCacheHit records a signing-key cache hit.
func (m *Metrics) RecordKeyCacheHit() {
	if !m.enabled {
		return
	}
	m.keyCacheHitsTotal.Inc()
}

// RecordKeyCacheMiss records a signing-key cache miss.
func (m *Metrics) RecordKeyCacheMiss() {
	if !m.enabled {
		return
	}
	m.keyCacheMissTotal.Inc()
}

// RecordKeyRefresh records a signing-key set refresh outcome (ok, error).
func (m *Metrics) RecordKeyRefresh(outcome string) {
	if !m.enabled {
		return
	}
	m.keyRefreshTotal.WithLabelValues(outcome).Inc()
}
