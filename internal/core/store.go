package core

import (
	"context"
	"time"

	"github.com/cockpit-trainer/cockpit-api/internal/models"
	"github.com/cockpit-trainer/cockpit-api/internal/store"
)

// UserStore is the credential store the session and user services write through.
// Lookups return store.ErrRecordNotFound on a miss; writes that collide with a
// unique column return a *store.UniqueViolationError.
type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	// GetUserByProviderOrEmail prefers a provider-subject match over an email match.
	GetUserByProviderOrEmail(ctx context.Context, provider, subject, email string) (*models.User, error)

	// CreateUser inserts user, promoting it to ADMIN when the table is empty.
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, id string, fields map[string]any) error
	// ToggleUserVerified flips the verified flag in one statement and returns the new value.
	ToggleUserVerified(ctx context.Context, id string) (bool, error)

	// SetRefreshTokenHash overwrites the stored hash unconditionally; nil clears it.
	SetRefreshTokenHash(ctx context.Context, id string, hash *string) error
	// SwapRefreshTokenHash replaces expected with next in a single conditional
	// update and returns store.ErrStaleRefreshToken when expected is no longer stored.
	SwapRefreshTokenHash(ctx context.Context, id, expected, next string) error
	// SetInitialPasswordHash writes hash only when no password is stored and
	// returns store.ErrPasswordHashSet otherwise.
	SetInitialPasswordHash(ctx context.Context, id, hash string) error

	ListUsers(
		ctx context.Context,
		params store.PaginationParams,
	) ([]models.User, store.PaginationResult, error)
	CountUsers(ctx context.Context) (int64, error)
	CountActiveSessions(ctx context.Context) (int64, error)
}

// AuditStore persists and queries audit log entries.
type AuditStore interface {
	CreateAuditLogBatch(ctx context.Context, logs []*models.AuditLog) error
	GetAuditLogsPaginated(
		ctx context.Context,
		params store.PaginationParams,
		filters store.AuditLogFilters,
	) ([]models.AuditLog, store.PaginationResult, error)
	DeleteOldAuditLogs(ctx context.Context, olderThan time.Time) (int64, error)
}
