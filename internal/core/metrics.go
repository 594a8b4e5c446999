package core

import (
	"context"
	"time"
)

// Recorder defines the interface for recording application metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// Authentication
	RecordAuthAttempt(method string, success bool, duration time.Duration)
	RecordRegistration(success bool)
	RecordOAuthLogin(provider, outcome string)
	RecordLogout()

	// Token Operations
	RecordTokenIssued(tokenType string, generationTime time.Duration)
	RecordTokenRefresh(success bool)
	RecordTokenValidation(result string)

	// Authorization
	RecordGateDecision(gate string, allowed bool)

	// Gauge Setters (for periodic updates)
	SetUsersCount(count int)
	SetActiveSessionsCount(count int)

	// Database Operations
	RecordDatabaseQueryError(operation string)
}

// MetricsStore defines the DB operations needed by CacheWrapper.
type MetricsStore interface {
	CountUsers(ctx context.Context) (int64, error)
	CountActiveSessions(ctx context.Context) (int64, error)
}
