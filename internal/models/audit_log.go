package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of audit event
type EventType string

const (
	// Credential events
	EventRegister     EventType = "REGISTER"
	EventLoginSuccess EventType = "LOGIN_SUCCESS"
	EventLoginFailure EventType = "LOGIN_FAILURE"
	EventOAuthLogin   EventType = "OAUTH_LOGIN"
	EventAccountLink  EventType = "ACCOUNT_LINKED"
	EventLogout       EventType = "LOGOUT"

	// Session events
	EventTokenRefreshed  EventType = "TOKEN_REFRESHED"
	EventRefreshRejected EventType = "REFRESH_REJECTED"

	// Account management
	EventUserUpdated        EventType = "USER_UPDATED"
	EventPasswordSet        EventType = "PASSWORD_SET"
	EventVerificationToggle EventType = "USER_VERIFICATION_TOGGLED"
	EventRoleChanged        EventType = "ROLE_CHANGED"

	// Security events
	EventRateLimitExceeded EventType = "RATE_LIMIT_EXCEEDED"
)

// EventSeverity represents the severity level of an audit event
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "INFO"
	SeverityWarning  EventSeverity = "WARNING"
	SeverityCritical EventSeverity = "CRITICAL"
)

// AuditDetails stores additional event-specific information as JSON
type AuditDetails map[string]any

// Value implements the driver.Valuer interface for database storage
func (a AuditDetails) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil //nolint:nilnil // nil driver.Value represents SQL NULL
	}
	return json.Marshal(a)
}

// Scan implements the sql.Scanner interface for database retrieval
func (a *AuditDetails) Scan(value any) error {
	if value == nil {
		*a = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to unmarshal AuditDetails value: %v", value)
	}

	result := make(AuditDetails)
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}

	*a = result
	return nil
}

// AuditLog is an immutable record of a security-relevant event
type AuditLog struct {
	ID string `gorm:"primaryKey;type:varchar(36)" json:"id"`

	EventType EventType     `gorm:"type:varchar(50);index;not null" json:"event_type"`
	EventTime time.Time     `gorm:"index;not null"                  json:"event_time"`
	Severity  EventSeverity `gorm:"type:varchar(20);not null"       json:"severity"`

	ActorUserID string `gorm:"type:varchar(36);index" json:"actor_user_id,omitempty"`
	ActorIP     string `gorm:"type:varchar(45)"       json:"actor_ip,omitempty"`

	// User the event is about (may differ from the actor for admin actions)
	TargetUserID string `gorm:"type:varchar(36);index" json:"target_user_id,omitempty"`

	Details      AuditDetails `gorm:"type:json"        json:"details,omitempty"`
	Success      bool         `gorm:"index;not null"   json:"success"`
	ErrorMessage string       `gorm:"type:text"        json:"error_message,omitempty"`

	UserAgent   string `gorm:"type:varchar(500)" json:"user_agent,omitempty"`
	RequestPath string `gorm:"type:varchar(500)" json:"request_path,omitempty"`

	CreatedAt time.Time `gorm:"index;not null" json:"created_at"`
}

// TableName specifies the table name for GORM
func (AuditLog) TableName() string {
	return "audit_logs"
}
