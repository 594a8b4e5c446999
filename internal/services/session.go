package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockpit-trainer/cockpit-api/internal/auth"
	"github.com/cockpit-trainer/cockpit-api/internal/core"
	"github.com/cockpit-trainer/cockpit-api/internal/models"
	"github.com/cockpit-trainer/cockpit-api/internal/store"
	"github.com/cockpit-trainer/cockpit-api/internal/token"

	"github.com/rs/zerolog/log"
)

const (
	methodPassword = "password"
	methodGoogle   = "google"

	// OAuth merge outcomes, also used as metric labels
	OAuthOutcomeCreated   = "created"
	OAuthOutcomeLinked    = "linked"
	OAuthOutcomeRefreshed = "refreshed"
	OAuthOutcomeUnchanged = "unchanged"
	oauthOutcomeFailed    = "failed"

	// Lookups retried after losing a concurrent first-time OAuth create
	maxOAuthResolveAttempts = 3
	// Username suffixes tried before giving up on a synthesized username
	maxUsernameCandidates = 100
)

// SessionOptions tunes observable sign-in behaviour
type SessionOptions struct {
	// HidePasswordNotSet reports OAuth-only accounts as invalid credentials
	HidePasswordNotSet bool
}

// SessionService is the only writer of credential and session state:
// sign-up, sign-in, OAuth sign-in and linking, refresh rotation and logout.
type SessionService struct {
	store    core.UserStore
	hasher   core.PasswordHasher
	tokens   core.TokenProvider
	verifier core.IDTokenVerifier // nil when Google sign-in is disabled
	metrics  core.Recorder
	audit    *AuditService
	opts     SessionOptions

	dummyHashOnce sync.Once
	dummyHash     string
}

func NewSessionService(
	s core.UserStore,
	hasher core.PasswordHasher,
	tokens core.TokenProvider,
	verifier core.IDTokenVerifier,
	m core.Recorder,
	audit *AuditService,
	opts SessionOptions,
) *SessionService {
	return &SessionService{
		store:    s,
		hasher:   hasher,
		tokens:   tokens,
		verifier: verifier,
		metrics:  m,
		audit:    audit,
		opts:     opts,
	}
}

// SignUp creates a password account and opens its first session.
// The first account ever created is stored as ADMIN.
func (s *SessionService) SignUp(
	ctx context.Context,
	email, username, password string,
) (*core.TokenPair, error) {
	email = normalizeEmail(email)
	username = strings.TrimSpace(username)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validatePassword("password", password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         models.RoleUser,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		s.metrics.RecordRegistration(false)
		err = classifyTaken(err)
		if isTaken(err) {
			s.audit.Log(ctx, AuditLogEntry{
				EventType:    models.EventRegister,
				Severity:     models.SeverityInfo,
				Success:      false,
				ErrorMessage: err.Error(),
			})
		}
		return nil, err
	}

	pair, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordRegistration(true)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventRegister,
		Severity:     models.SeverityInfo,
		ActorUserID:  user.ID,
		TargetUserID: user.ID,
		Details:      models.AuditDetails{"username": user.Username, "role": string(user.Role)},
		Success:      true,
	})
	log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("User registered")
	return pair, nil
}

// SignIn authenticates an email and password pair. Unknown email and wrong
// password both fail with ErrInvalidCredentials.
func (s *SessionService) SignIn(
	ctx context.Context,
	email, password string,
) (*core.TokenPair, error) {
	start := time.Now()
	email = normalizeEmail(email)
	if email == "" || password == "" || len(password) > maxPasswordLength {
		return nil, s.loginFailed(ctx, "", start, ErrInvalidCredentials, "missing credentials")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrRecordNotFound) {
			return nil, fmt.Errorf("lookup user: %w", err)
		}
		s.burnHash(password)
		return nil, s.loginFailed(ctx, "", start, ErrInvalidCredentials, "unknown email")
	}

	if !user.HasPassword() {
		s.burnHash(password)
		if s.opts.HidePasswordNotSet {
			return nil, s.loginFailed(ctx, user.ID, start, ErrInvalidCredentials, "password not set")
		}
		return nil, s.loginFailed(ctx, user.ID, start, ErrPasswordNotSet, "password not set")
	}

	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Stored password hash is unusable")
		return nil, s.loginFailed(ctx, user.ID, start, ErrInvalidCredentials, "unusable password hash")
	}
	if !ok {
		return nil, s.loginFailed(ctx, user.ID, start, ErrInvalidCredentials, "wrong password")
	}

	pair, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthAttempt(methodPassword, true, time.Since(start))
	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventLoginSuccess,
		Severity:     models.SeverityInfo,
		ActorUserID:  user.ID,
		TargetUserID: user.ID,
		Details:      models.AuditDetails{"method": methodPassword},
		Success:      true,
	})
	return pair, nil
}

func (s *SessionService) loginFailed(
	ctx context.Context,
	userID string,
	start time.Time,
	err error,
	reason string,
) error {
	s.metrics.RecordAuthAttempt(methodPassword, false, time.Since(start))
	log.Warn().Str("user_id", userID).Str("reason", reason).Msg("Password sign-in rejected")
	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventLoginFailure,
		Severity:     models.SeverityWarning,
		TargetUserID: userID,
		Details:      models.AuditDetails{"method": methodPassword, "reason": reason},
		Success:      false,
		ErrorMessage: err.Error(),
	})
	return err
}

// burnHash runs one verification against a fixed hash so that a miss costs
// about as much as a wrong password.
func (s *SessionService) burnHash(password string) {
	s.dummyHashOnce.Do(func() {
		hash, err := s.hasher.Hash("cockpit-dummy-password")
		if err != nil {
			log.Error().Err(err).Msg("Failed to prepare dummy password hash")
			return
		}
		s.dummyHash = hash
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(s.dummyHash, password)
	}
}

// SignInWithGoogle verifies a Google ID token and signs in the matching
// account, creating or linking it on the way.
func (s *SessionService) SignInWithGoogle(
	ctx context.Context,
	idToken string,
) (*core.TokenPair, error) {
	start := time.Now()
	if s.verifier == nil {
		return nil, ErrInvalidExternalToken
	}
	provider := s.verifier.Name()

	identity, err := s.verifier.VerifyIDToken(ctx, idToken)
	if err == nil && (!identity.EmailVerified || identity.Subject == "") {
		err = auth.ErrEmailNotVerified
	}
	var email string
	if err == nil {
		email = normalizeEmail(identity.Email)
		err = validateEmail(email)
	}
	if err != nil {
		s.metrics.RecordAuthAttempt(methodGoogle, false, time.Since(start))
		s.metrics.RecordOAuthLogin(provider, oauthOutcomeFailed)
		log.Warn().Err(err).Str("provider", provider).Msg("External ID token rejected")
		s.audit.Log(ctx, AuditLogEntry{
			EventType:    models.EventOAuthLogin,
			Severity:     models.SeverityWarning,
			Details:      models.AuditDetails{"provider": provider},
			Success:      false,
			ErrorMessage: err.Error(),
		})
		return nil, ErrInvalidExternalToken
	}

	user, outcome, err := s.resolveExternalUser(ctx, provider, identity, email)
	if err != nil {
		s.metrics.RecordAuthAttempt(methodGoogle, false, time.Since(start))
		s.metrics.RecordOAuthLogin(provider, oauthOutcomeFailed)
		return nil, err
	}

	pair, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthAttempt(methodGoogle, true, time.Since(start))
	s.metrics.RecordOAuthLogin(provider, outcome)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventOAuthLogin,
		Severity:     models.SeverityInfo,
		ActorUserID:  user.ID,
		TargetUserID: user.ID,
		Details:      models.AuditDetails{"provider": provider, "outcome": outcome},
		Success:      true,
	})
	return pair, nil
}

// resolveExternalUser finds the account for identity, creating it when absent.
// A create that loses a race to a concurrent sign-in retries the lookup.
func (s *SessionService) resolveExternalUser(
	ctx context.Context,
	provider string,
	identity *core.ExternalIdentity,
	email string,
) (*models.User, string, error) {
	for attempt := 0; attempt < maxOAuthResolveAttempts; attempt++ {
		user, err := s.store.GetUserByProviderOrEmail(ctx, provider, identity.Subject, email)
		switch {
		case errors.Is(err, store.ErrRecordNotFound):
			user, err = s.createExternalUser(ctx, provider, identity, email)
			if errors.Is(err, store.ErrUniqueViolation) {
				log.Debug().Int("attempt", attempt+1).Msg("Concurrent OAuth create detected, retrying lookup")
				continue
			}
			if err != nil {
				return nil, "", fmt.Errorf("create external user: %w", err)
			}
			return user, OAuthOutcomeCreated, nil

		case err != nil:
			return nil, "", fmt.Errorf("lookup external user: %w", err)

		default:
			outcome, err := s.syncExternalUser(ctx, user, provider, identity)
			if err != nil {
				return nil, "", err
			}
			return user, outcome, nil
		}
	}
	return nil, "", fmt.Errorf("resolve external user: %w", ErrCredentialsTaken)
}

// createExternalUser inserts a verified, password-less account with a
// username synthesized from the email's local part.
func (s *SessionService) createExternalUser(
	ctx context.Context,
	provider string,
	identity *core.ExternalIdentity,
	email string,
) (*models.User, error) {
	base := auth.UsernameBase(email)
	for n := 0; n < maxUsernameCandidates; n++ {
		candidate := auth.UsernameCandidate(base, n)
		if _, err := s.store.GetUserByUsername(ctx, candidate); err == nil {
			continue
		} else if !errors.Is(err, store.ErrRecordNotFound) {
			return nil, err
		}

		subject := identity.Subject
		user := &models.User{
			Email:      email,
			Username:   candidate,
			Role:       models.RoleUser,
			Provider:   &provider,
			ProviderID: &subject,
			Verified:   true,
			Avatar:     identity.Picture,
		}
		err := s.store.CreateUser(ctx, user)
		var uv *store.UniqueViolationError
		if errors.As(err, &uv) && uv.HasField("username") && !uv.HasField("email") {
			// Someone took this username between the check and the insert
			continue
		}
		if err != nil {
			return nil, err
		}

		log.Info().
			Str("user_id", user.ID).
			Str("provider", provider).
			Str("username", user.Username).
			Msg("Created user from external identity")
		return user, nil
	}
	return nil, fmt.Errorf("%w: no free username for %q", ErrCredentialsTaken, base)
}

// syncExternalUser brings an existing account in line with the identity:
// link it when it is not linked to this subject, refresh drifted profile
// fields when it is, or leave it alone.
func (s *SessionService) syncExternalUser(
	ctx context.Context,
	user *models.User,
	provider string,
	identity *core.ExternalIdentity,
) (string, error) {
	linked := user.ProviderName() == provider && user.ProviderSubject() == identity.Subject
	avatarDrift := identity.Picture != "" && identity.Picture != user.Avatar

	var outcome string
	fields := map[string]any{}
	switch {
	case !linked:
		outcome = OAuthOutcomeLinked
		fields["provider"] = provider
		fields["provider_id"] = identity.Subject
		fields["verified"] = true
		if avatarDrift {
			fields["avatar"] = identity.Picture
		}
	case !user.Verified || avatarDrift:
		outcome = OAuthOutcomeRefreshed
		fields["verified"] = true
		if avatarDrift {
			fields["avatar"] = identity.Picture
		}
	default:
		return OAuthOutcomeUnchanged, nil
	}

	if err := s.store.UpdateUser(ctx, user.ID, fields); err != nil {
		return "", fmt.Errorf("sync external user: %w", err)
	}

	subject := identity.Subject
	user.Provider = &provider
	user.ProviderID = &subject
	user.Verified = true
	if avatarDrift {
		user.Avatar = identity.Picture
	}

	if outcome == OAuthOutcomeLinked {
		log.Info().Str("user_id", user.ID).Str("provider", provider).Msg("Linked external identity")
		s.audit.Log(ctx, AuditLogEntry{
			EventType:    models.EventAccountLink,
			Severity:     models.SeverityWarning,
			ActorUserID:  user.ID,
			TargetUserID: user.ID,
			Details:      models.AuditDetails{"provider": provider},
			Success:      true,
		})
	}
	return outcome, nil
}

// RefreshTokens exchanges a refresh token for a new pair and rotates the
// stored hash. Every failure is reported as ErrInvalidRefreshToken.
func (s *SessionService) RefreshTokens(
	ctx context.Context,
	refreshToken string,
) (*core.TokenPair, error) {
	claims, err := s.tokens.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, s.refreshRejected(ctx, "", "token verification failed")
	}

	user, err := s.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, s.refreshRejected(ctx, claims.Subject, "unknown subject")
		}
		// The stored hash is untouched, so the token stays usable once the store recovers
		s.metrics.RecordTokenRefresh(false)
		return nil, fmt.Errorf("load refresh subject: %w", err)
	}
	if !user.HasActiveSession() {
		return nil, s.refreshRejected(ctx, user.ID, "no active session")
	}

	storedHash := *user.RefreshTokenHash
	ok, err := s.hasher.Verify(storedHash, refreshToken)
	if err != nil || !ok {
		// A well-signed token that does not match the stored hash was already rotated
		return nil, s.refreshRejected(ctx, user.ID, "refresh token reuse")
	}

	pair, nextHash, err := s.mintPair(ctx, user)
	if err != nil {
		s.metrics.RecordTokenRefresh(false)
		return nil, err
	}

	if err := s.store.SwapRefreshTokenHash(ctx, user.ID, storedHash, nextHash); err != nil {
		if errors.Is(err, store.ErrStaleRefreshToken) || errors.Is(err, store.ErrRecordNotFound) {
			return nil, s.refreshRejected(ctx, user.ID, "concurrent rotation")
		}
		s.metrics.RecordTokenRefresh(false)
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	s.metrics.RecordTokenRefresh(true)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventTokenRefreshed,
		Severity:     models.SeverityInfo,
		ActorUserID:  user.ID,
		TargetUserID: user.ID,
		Success:      true,
	})
	return pair, nil
}

func (s *SessionService) refreshRejected(ctx context.Context, userID, reason string) error {
	s.metrics.RecordTokenRefresh(false)
	log.Warn().Str("user_id", userID).Str("reason", reason).Msg("Refresh token rejected")
	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventRefreshRejected,
		Severity:     models.SeverityWarning,
		TargetUserID: userID,
		Details:      models.AuditDetails{"reason": reason},
		Success:      false,
	})
	return ErrInvalidRefreshToken
}

// Logout clears the stored refresh hash; any outstanding refresh token stops working.
func (s *SessionService) Logout(ctx context.Context, userID string) error {
	if err := s.store.SetRefreshTokenHash(ctx, userID, nil); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("clear refresh token: %w", err)
	}

	s.metrics.RecordLogout()
	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventLogout,
		Severity:     models.SeverityInfo,
		ActorUserID:  userID,
		TargetUserID: userID,
		Success:      true,
	})
	return nil
}

// GetMe returns the public projection of the user
func (s *SessionService) GetMe(ctx context.Context, userID string) (*models.PublicUser, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	public := user.Public()
	return &public, nil
}

// openSession mints a pair and stores its refresh hash. The hash write is the
// commit point: the pair is only returned once it is persisted.
func (s *SessionService) openSession(ctx context.Context, user *models.User) (*core.TokenPair, error) {
	pair, hash, err := s.mintPair(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetRefreshTokenHash(ctx, user.ID, &hash); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	user.RefreshTokenHash = &hash
	return pair, nil
}

func (s *SessionService) mintPair(
	ctx context.Context,
	user *models.User,
) (*core.TokenPair, string, error) {
	start := time.Now()
	pair, err := s.tokens.GenerateTokenPair(ctx, user.ID, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("generate tokens: %w", err)
	}
	elapsed := time.Since(start)
	s.metrics.RecordTokenIssued(token.TokenTypeAccess, elapsed)
	s.metrics.RecordTokenIssued(token.TokenTypeRefresh, elapsed)

	hash, err := s.hasher.Hash(pair.RefreshToken)
	if err != nil {
		return nil, "", fmt.Errorf("hash refresh token: %w", err)
	}
	return pair, hash, nil
}

// classifyTaken maps a store unique violation onto the taken-credential errors
func classifyTaken(err error) error {
	var uv *store.UniqueViolationError
	if !errors.As(err, &uv) {
		return err
	}
	switch {
	case uv.HasField("email"):
		return ErrEmailTaken
	case uv.HasField("username"):
		return ErrUsernameTaken
	default:
		return ErrCredentialsTaken
	}
}

func isTaken(err error) bool {
	return errors.Is(err, ErrEmailTaken) ||
		errors.Is(err, ErrUsernameTaken) ||
		errors.Is(err, ErrCredentialsTaken)
}
