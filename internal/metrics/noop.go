package metrics

import "time"

// NoopMetrics is a no-operation implementation of Recorder
// All methods are empty and do nothing, providing zero overhead when metrics are disabled
type NoopMetrics struct{}

// Ensure NoopMetrics implements Recorder interface at compile time
var _ Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordAuthAttempt(method string, success bool, duration time.Duration) {}
func (n *NoopMetrics) RecordRegistration(success bool)                                       {}
func (n *NoopMetrics) RecordOAuthLogin(provider, outcome string)                             {}
func (n *NoopMetrics) RecordLogout()                                                         {}

func (n *NoopMetrics) RecordTokenIssued(tokenType string, generationTime time.Duration) {}
func (n *NoopMetrics) RecordTokenRefresh(success bool)                                  {}
func (n *NoopMetrics) RecordTokenValidation(result string)                              {}

func (n *NoopMetrics) RecordGateDecision(gate string, allowed bool) {}

func (n *NoopMetrics) SetUsersCount(count int)          {}
func (n *NoopMetrics) SetActiveSessionsCount(count int) {}

func (n *NoopMetrics) RecordDatabaseQueryError(operation string) {}
