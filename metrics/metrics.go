// Package metrics provides Prometheus metrics for session and
// authentication operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	swissknife "github.com/swissknife-wallet/swissknife-go"
)

// Metrics holds all Prometheus metrics for the SDK.
// If enabled is false, every method is a no-op.
type Metrics struct {
	enabled bool

	// Session metrics
	sessionState     *prometheus.GaugeVec
	signInsTotal     *prometheus.CounterVec
	signOutsTotal    prometheus.Counter
	rehydratesTotal  *prometheus.CounterVec
	rehydrateSeconds prometheus.Histogram

	// Interceptor metrics
	unauthorizedTotal    prometheus.Counter
	refreshFailuresTotal *prometheus.CounterVec

	// Guard and onboarding metrics
	guardDecisionsTotal *prometheus.CounterVec
	setupChecksTotal    *prometheus.CounterVec
}

// New creates metrics registered on reg. If enabled is false, returns a
// no-op Metrics instance. Pass prometheus.DefaultRegisterer for the
// process-wide registry.
func New(enabled bool, reg prometheus.Registerer) *Metrics {
	m := &Metrics{enabled: enabled}

	if !enabled {
		return m
	}

	m.sessionState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "swissknife_session_state",
		Help: "Current session state (1 for the active state, 0 otherwise)",
	}, []string{"state"})

	m.signInsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swissknife_sign_ins_total",
		Help: "Total sign-in attempts",
	}, []string{"strategy", "result"})

	m.signOutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swissknife_sign_outs_total",
		Help: "Total sign-outs",
	})

	m.rehydratesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swissknife_rehydrates_total",
		Help: "Total session rehydration attempts",
	}, []string{"result"})

	m.rehydrateSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "swissknife_rehydrate_duration_seconds",
		Help:    "Session rehydration duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	m.unauthorizedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swissknife_unauthorized_total",
		Help: "Total 401 responses observed by the interceptor",
	})

	m.refreshFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swissknife_token_refresh_failures_total",
		Help: "Total silent token refresh failures",
	}, []string{"class"})

	m.guardDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swissknife_guard_decisions_total",
		Help: "Total route guard decisions",
	}, []string{"guard", "decision"})

	m.setupChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swissknife_setup_checks_total",
		Help: "Total onboarding setup-status checks",
	}, []string{"source"})

	reg.MustRegister(
		m.sessionState, m.signInsTotal, m.signOutsTotal,
		m.rehydratesTotal, m.rehydrateSeconds,
		m.unauthorizedTotal, m.refreshFailuresTotal,
		m.guardDecisionsTotal, m.setupChecksTotal,
	)

	return m
}

// SetSessionState marks the current session state gauge.
func (m *Metrics) SetSessionState(state swissknife.Status) {
	if !m.enabled {
		return
	}
	for _, s := range []swissknife.Status{
		swissknife.StatusLoading, swissknife.StatusAuthenticated, swissknife.StatusUnauthenticated,
	} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		m.sessionState.WithLabelValues(string(s)).Set(v)
	}
}

// RecordSignIn records a sign-in attempt.
func (m *Metrics) RecordSignIn(strategy swissknife.Strategy, success bool) {
	if !m.enabled {
		return
	}
	m.signInsTotal.WithLabelValues(string(strategy), resultLabel(success)).Inc()
}

// RecordSignOut records a sign-out.
func (m *Metrics) RecordSignOut() {
	if !m.enabled {
		return
	}
	m.signOutsTotal.Inc()
}

// RecordRehydrate records a rehydration attempt and its duration.
func (m *Metrics) RecordRehydrate(authenticated bool, durationSeconds float64) {
	if !m.enabled {
		return
	}
	m.rehydratesTotal.WithLabelValues(resultLabel(authenticated)).Inc()
	m.rehydrateSeconds.Observe(durationSeconds)
}

// RecordUnauthorized records an observed 401 response.
func (m *Metrics) RecordUnauthorized() {
	if !m.enabled {
		return
	}
	m.unauthorizedTotal.Inc()
}

// RecordRefreshFailure records a classified silent-refresh failure.
func (m *Metrics) RecordRefreshFailure(class swissknife.RefreshFailure) {
	if !m.enabled {
		return
	}
	m.refreshFailuresTotal.WithLabelValues(string(class)).Inc()
}

// RecordGuardDecision records a route guard decision.
func (m *Metrics) RecordGuardDecision(guard, decision string) {
	if !m.enabled {
		return
	}
	m.guardDecisionsTotal.WithLabelValues(guard, decision).Inc()
}

// RecordSetupCheck records an onboarding status check and whether it was
// answered from the local flag cache or the network.
func (m *Metrics) RecordSetupCheck(source string) {
	if !m.enabled {
		return
	}
	m.setupChecksTotal.WithLabelValues(source).Inc()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
