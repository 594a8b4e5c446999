package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cockpit-trainer/cockpit-api/internal/core"
	"github.com/cockpit-trainer/cockpit-api/internal/models"
	"github.com/cockpit-trainer/cockpit-api/internal/store"

	"github.com/rs/zerolog/log"
)

// EditUserInput carries the optional fields of a self-service profile edit
type EditUserInput struct {
	Email           *string
	Username        *string
	CurrentPassword *string
	NewPassword     *string
}

// VerificationStatus is the result of toggling a user's verified flag
type VerificationStatus struct {
	ID       string `json:"id"`
	Verified bool   `json:"verified"`
}

// UserService manages accounts after they exist: listing, profile edits,
// password setup and the admin-only verification and role switches.
type UserService struct {
	store  core.UserStore
	hasher core.PasswordHasher
	audit  *AuditService
}

func NewUserService(s core.UserStore, hasher core.PasswordHasher, audit *AuditService) *UserService {
	return &UserService{store: s, hasher: hasher, audit: audit}
}

// ListUsers returns one page of public user projections
func (s *UserService) ListUsers(
	ctx context.Context,
	params store.PaginationParams,
) ([]models.PublicUser, store.PaginationResult, error) {
	users, pagination, err := s.store.ListUsers(ctx, params)
	if err != nil {
		return nil, store.PaginationResult{}, fmt.Errorf("list users: %w", err)
	}

	result := make([]models.PublicUser, 0, len(users))
	for i := range users {
		result = append(result, users[i].Public())
	}
	return result, pagination, nil
}

// EditUser applies a self-service edit. Changing the password requires the
// current one when a password is set; OAuth-only accounts must use SetPassword.
func (s *UserService) EditUser(
	ctx context.Context,
	userID string,
	input EditUserInput,
) (*models.PublicUser, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if input.Email != nil && *input.Email != "" {
		email := normalizeEmail(*input.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		if email != user.Email {
			fields["email"] = email
		}
	}
	if input.Username != nil && *input.Username != "" {
		username := strings.TrimSpace(*input.Username)
		if err := validateUsername(username); err != nil {
			return nil, err
		}
		if username != user.Username {
			fields["username"] = username
		}
	}

	passwordChanged := false
	if input.NewPassword != nil && *input.NewPassword != "" {
		if err := validatePassword("newPassword", *input.NewPassword); err != nil {
			return nil, err
		}
		if !user.HasPassword() {
			return nil, ErrPasswordNotSet
		}
		if input.CurrentPassword == nil || *input.CurrentPassword == "" {
			return nil, ErrCurrentPasswordRequired
		}
		ok, err := s.hasher.Verify(user.PasswordHash, *input.CurrentPassword)
		if err != nil {
			return nil, fmt.Errorf("verify current password: %w", err)
		}
		if !ok {
			return nil, ErrCurrentPasswordIncorrect
		}
		hash, err := s.hasher.Hash(*input.NewPassword)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		fields["password_hash"] = hash
		passwordChanged = true
	}

	if len(fields) > 0 {
		if err := s.store.UpdateUser(ctx, userID, fields); err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, classifyTaken(err)
		}
		s.audit.Log(ctx, AuditLogEntry{
			EventType:    models.EventUserUpdated,
			Severity:     models.SeverityInfo,
			ActorUserID:  userID,
			TargetUserID: userID,
			Details:      models.AuditDetails{"fields": changedFields(fields)},
			Success:      true,
		})
		if passwordChanged {
			log.Info().Str("user_id", userID).Msg("Password changed")
		}
	}

	return s.publicUser(ctx, userID)
}

// SetPassword gives an OAuth-only account its first password
func (s *UserService) SetPassword(ctx context.Context, userID, newPassword string) error {
	if err := validatePassword("newPassword", newPassword); err != nil {
		return err
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.HasPassword() {
		return ErrPasswordAlreadySet
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	// The early check only spares the hash cost; the conditional write decides
	if err := s.store.SetInitialPasswordHash(ctx, userID, hash); err != nil {
		switch {
		case errors.Is(err, store.ErrRecordNotFound):
			return ErrUserNotFound
		case errors.Is(err, store.ErrPasswordHashSet):
			return ErrPasswordAlreadySet
		}
		return err
	}

	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventPasswordSet,
		Severity:     models.SeverityInfo,
		ActorUserID:  userID,
		TargetUserID: userID,
		Success:      true,
	})
	return nil
}

// ToggleVerified flips the verified flag of userID
func (s *UserService) ToggleVerified(ctx context.Context, userID string) (*VerificationStatus, error) {
	verified, err := s.store.ToggleUserVerified(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("toggle verified: %w", err)
	}

	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventVerificationToggle,
		Severity:     models.SeverityInfo,
		TargetUserID: userID,
		Details:      models.AuditDetails{"verified": verified},
		Success:      true,
	})
	return &VerificationStatus{ID: userID, Verified: verified}, nil
}

// SetRole changes the role of userID. Gates re-read the role on every
// request, so the change applies from the user's next call.
func (s *UserService) SetRole(
	ctx context.Context,
	userID string,
	role models.Role,
) (*models.PublicUser, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	previous := user.Role

	if previous != role {
		if err := s.store.UpdateUser(ctx, userID, map[string]any{"role": role}); err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("update role: %w", err)
		}
		s.audit.Log(ctx, AuditLogEntry{
			EventType:    models.EventRoleChanged,
			Severity:     models.SeverityWarning,
			TargetUserID: userID,
			Details:      models.AuditDetails{"from": string(previous), "to": string(role)},
			Success:      true,
		})
		log.Info().
			Str("user_id", userID).
			Str("from", string(previous)).
			Str("to", string(role)).
			Msg("Role changed")
	}

	user.Role = role
	public := user.Public()
	return &public, nil
}

func (s *UserService) getUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) publicUser(ctx context.Context, userID string) (*models.PublicUser, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	public := user.Public()
	return &public, nil
}

// changedFields lists the updated columns without their values
func changedFields(fields map[string]any) []string {
	names := make([]string, 0, len(fields))
	for _, name := range []string{"email", "username", "password_hash"} {
		if _, ok := fields[name]; ok {
			names = append(names, name)
		}
	}
	return names
}
