package models

import (
	"time"
)

// Role is the authorization level persisted on a user record
type Role string

const (
	RoleUser      Role = "USER"
	RoleModerator Role = "MODERATOR"
	RoleAdmin     Role = "ADMIN"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// OAuth provider names stored in User.Provider
const (
	ProviderGoogle = "GOOGLE"
)

type User struct {
	ID       string `gorm:"primaryKey"`
	Email    string `gorm:"uniqueIndex;not null"`
	Username string `gorm:"uniqueIndex;not null"`

	// OAuth-only users have an empty password hash until they set one
	PasswordHash string

	// Hash of the most recently issued refresh token; nil after logout
	RefreshTokenHash *string

	Role Role `gorm:"type:varchar(16);not null;default:'USER'"`

	// External identity; nil for password-only accounts
	Provider   *string `gorm:"uniqueIndex:idx_users_provider_subject,priority:1"`
	ProviderID *string `gorm:"uniqueIndex:idx_users_provider_subject,priority:2"`

	Verified bool   `gorm:"not null;default:false"`
	Avatar   string // Display picture URL, refreshed on OAuth sign-in

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAdmin returns true if the user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsModerator returns true for moderators and admins
func (u *User) IsModerator() bool {
	return u.Role == RoleModerator || u.Role == RoleAdmin
}

// HasPassword reports whether the account can sign in with a password
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// HasActiveSession reports whether a refresh token is currently outstanding
func (u *User) HasActiveSession() bool {
	return u.RefreshTokenHash != nil && *u.RefreshTokenHash != ""
}

// ProviderName returns the linked OAuth provider or an empty string
func (u *User) ProviderName() string {
	if u.Provider == nil {
		return ""
	}
	return *u.Provider
}

// ProviderSubject returns the linked provider's subject or an empty string
func (u *User) ProviderSubject() string {
	if u.ProviderID == nil {
		return ""
	}
	return *u.ProviderID
}

// PublicUser is the subset of a user record that may leave the service
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	Verified bool   `json:"verified"`
	Avatar   string `json:"avatar,omitempty"`
}

// Public projects the user onto its public-safe fields
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		Verified: u.Verified,
		Avatar:   u.Avatar,
	}
}
