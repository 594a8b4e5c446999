package metrics

import (
	"sync"
	"time"

	"github.com/cockpit-trainer/cockpit-api/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is an alias for core.Recorder so callers can import only this package.
type Recorder = core.Recorder

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Authentication Metrics
	AuthAttemptsTotal   *prometheus.CounterVec
	AuthLoginDuration   *prometheus.HistogramVec
	RegistrationsTotal  *prometheus.CounterVec
	OAuthLoginsTotal    *prometheus.CounterVec
	LogoutsTotal        prometheus.Counter
	GateDecisionsTotal  *prometheus.CounterVec
	UsersTotal          prometheus.Gauge
	SessionsActive      prometheus.Gauge
	DatabaseQueryErrors *prometheus.CounterVec

	// Token Metrics
	TokensIssuedTotal       *prometheus.CounterVec
	TokenGenerationDuration prometheus.Histogram
	TokensRefreshedTotal    *prometheus.CounterVec
	TokenValidationTotal    *prometheus.CounterVec

	// HTTP Request Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag
// If enabled=true, returns Prometheus-based Metrics
// If enabled=false, returns NoopMetrics (zero overhead)
// Uses sync.Once to ensure Prometheus metrics are only registered once
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

// initMetrics creates and registers all Prometheus metrics
func initMetrics() *Metrics {
	return &Metrics{
		AuthAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_attempts_total",
				Help: "Total number of sign-in attempts",
			},
			[]string{"method", "result"}, // password|google, success|failure
		),
		AuthLoginDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auth_login_duration_seconds",
				Help:    "Sign-in latency including password hashing",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		RegistrationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_registrations_total",
				Help: "Total number of sign-up attempts",
			},
			[]string{"result"},
		),
		OAuthLoginsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_oauth_logins_total",
				Help: "OAuth sign-ins by merge outcome",
			},
			[]string{"provider", "outcome"}, // created, linked, refreshed, unchanged, failed
		),
		LogoutsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "auth_logouts_total",
				Help: "Total number of logouts",
			},
		),
		GateDecisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_gate_decisions_total",
				Help: "Role gate decisions",
			},
			[]string{"gate", "result"}, // admin|moderator, allowed|denied
		),
		UsersTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "users_total",
				Help: "Current number of user accounts",
			},
		),
		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sessions_active",
				Help: "Users currently holding a refresh token",
			},
		),
		DatabaseQueryErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "database_query_errors_total",
				Help: "Database errors seen while collecting metrics",
			},
			[]string{"operation"},
		),

		TokensIssuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokens_issued_total",
				Help: "Total number of tokens issued",
			},
			[]string{"token_type"},
		),
		TokenGenerationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "token_generation_duration_seconds",
				Help:    "Time taken to mint a token pair",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
			},
		),
		TokensRefreshedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokens_refreshed_total",
				Help: "Refresh token exchanges",
			},
			[]string{"result"},
		),
		TokenValidationTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_validation_total",
				Help: "Access token validations",
			},
			[]string{"result"}, // valid, invalid, missing, unknown_user
		),

		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being served",
			},
		),
	}
}

func result(success bool) string {
	if success {
		return resultSuccess
	}
	return resultFailure
}

// RecordAuthAttempt records a sign-in attempt and its latency
func (m *Metrics) RecordAuthAttempt(method string, success bool, duration time.Duration) {
	m.AuthAttemptsTotal.WithLabelValues(method, result(success)).Inc()
	m.AuthLoginDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (m *Metrics) RecordRegistration(success bool) {
	m.RegistrationsTotal.WithLabelValues(result(success)).Inc()
}

func (m *Metrics) RecordOAuthLogin(provider, outcome string) {
	m.OAuthLoginsTotal.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) RecordLogout() {
	m.LogoutsTotal.Inc()
}

// RecordTokenIssued records one issued token of tokenType
func (m *Metrics) RecordTokenIssued(tokenType string, generationTime time.Duration) {
	m.TokensIssuedTotal.WithLabelValues(tokenType).Inc()
	m.TokenGenerationDuration.Observe(generationTime.Seconds())
}

func (m *Metrics) RecordTokenRefresh(success bool) {
	m.TokensRefreshedTotal.WithLabelValues(result(success)).Inc()
}

func (m *Metrics) RecordTokenValidation(result string) {
	m.TokenValidationTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordGateDecision(gate string, allowed bool) {
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	m.GateDecisionsTotal.WithLabelValues(gate, decision).Inc()
}

// SetUsersCount sets the current number of accounts (for periodic updates)
func (m *Metrics) SetUsersCount(count int) {
	m.UsersTotal.Set(float64(count))
}

// SetActiveSessionsCount sets the current count of active sessions (for periodic updates)
func (m *Metrics) SetActiveSessionsCount(count int) {
	m.SessionsActive.Set(float64(count))
}

// RecordDatabaseQueryError records a database query error during metric collection
func (m *Metrics) RecordDatabaseQueryError(operation string) {
	m.DatabaseQueryErrors.WithLabelValues(operation).Inc()
}
