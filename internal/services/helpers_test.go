package services

import (
	"context"
	"testing"
	"time"

	"github.com/cockpit-trainer/cockpit-api/internal/auth"
	"github.com/cockpit-trainer/cockpit-api/internal/config"
	"github.com/cockpit-trainer/cockpit-api/internal/core"
	"github.com/cockpit-trainer/cockpit-api/internal/metrics"
	"github.com/cockpit-trainer/cockpit-api/internal/models"
	"github.com/cockpit-trainer/cockpit-api/internal/store"
	"github.com/cockpit-trainer/cockpit-api/internal/token"

	"github.com/stretchr/testify/require"
)

// fastParams keeps argon2 cheap in tests
var fastParams = auth.Argon2Params{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

func testConfig() *config.Config {
	return &config.Config{
		BaseURL:                "http://localhost:3333",
		JWTSecret:              "test-secret-key-for-jwt-signing",
		AccessTokenExpiration:  5 * time.Minute,
		RefreshTokenExpiration: 7 * 24 * time.Hour,
	}
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type sessionFixture struct {
	store  *store.Store
	hasher *auth.Argon2Hasher
	tokens *token.LocalTokenProvider
	svc    *SessionService
}

func newSessionFixture(
	t *testing.T,
	verifier core.IDTokenVerifier,
	opts SessionOptions,
) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		store:  setupTestStore(t),
		hasher: auth.NewArgon2Hasher(fastParams),
		tokens: token.NewLocalTokenProvider(testConfig()),
	}
	f.svc = NewSessionService(
		f.store,
		f.hasher,
		f.tokens,
		verifier,
		metrics.NewNoopMetrics(),
		NewAuditService(f.store, false, 0),
		opts,
	)
	return f
}

// signUp registers a user and returns it together with its first token pair
func (f *sessionFixture) signUp(
	t *testing.T,
	email, username, password string,
) (*models.User, *core.TokenPair) {
	t.Helper()
	ctx := context.Background()
	pair, err := f.svc.SignUp(ctx, email, username, password)
	require.NoError(t, err)
	user, err := f.store.GetUserByEmail(ctx, email)
	require.NoError(t, err)
	return user, pair
}

func strPtr(s string) *string { return &s }
