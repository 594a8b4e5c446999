package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cockpit-trainer/cockpit-api/internal/config"
	"github.com/cockpit-trainer/cockpit-api/internal/core"
	"github.com/cockpit-trainer/cockpit-api/internal/metrics"
	"github.com/cockpit-trainer/cockpit-api/internal/mocks"
	"github.com/cockpit-trainer/cockpit-api/internal/models"
	"github.com/cockpit-trainer/cockpit-api/internal/store"
	"github.com/cockpit-trainer/cockpit-api/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc.def", "abc.def", true},
		{"bearer abc", "abc", true},
		{"BEARER  abc ", "abc", true},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"abc", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, ok := ExtractBearerToken(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.token, got)
		})
	}
}

type authFixture struct {
	store  *store.Store
	tokens *token.LocalTokenProvider
	router *gin.Engine
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s, err := store.New(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	f := &authFixture{
		store: s,
		tokens: token.NewLocalTokenProvider(&config.Config{
			BaseURL:                "http://localhost:3333",
			JWTSecret:              "middleware-test-secret",
			AccessTokenExpiration:  5 * time.Minute,
			RefreshTokenExpiration: time.Hour,
		}),
	}

	m := metrics.NewNoopMetrics()
	ok := func(c *gin.Context) {
		user, _ := GetUser(c)
		c.JSON(http.StatusOK, gin.H{"id": user.ID, "role": user.Role})
	}

	r := gin.New()
	authed := r.Group("/auth", RequireAuth(f.tokens, s, m))
	authed.GET("/profile", ok)
	authed.GET("/moderator", RequireModerator(m), ok)
	authed.GET("/admin", RequireAdmin(m), ok)
	f.router = r
	return f
}

// createUser inserts a user and forces its role, bypassing first-user promotion
func (f *authFixture) createUser(t *testing.T, email string, role models.Role) (*models.User, string) {
	t.Helper()
	ctx := context.Background()
	user := &models.User{Email: email, Username: email, PasswordHash: "x"}
	require.NoError(t, f.store.CreateUser(ctx, user))
	require.NoError(t, f.store.UpdateUser(ctx, user.ID, map[string]any{"role": role}))
	user.Role = role

	pair, err := f.tokens.GenerateTokenPair(ctx, user.ID, user.Email)
	require.NoError(t, err)
	return user, pair.AccessToken
}

func (f *authFixture) get(path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	f := newAuthFixture(t)
	user, access := f.createUser(t, "pilot@example.com", models.RoleUser)

	t.Run("missing header", func(t *testing.T) {
		w := f.get("/auth/profile", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, `Bearer realm="cockpit"`, w.Header().Get("WWW-Authenticate"))
		assert.Contains(t, w.Body.String(), "Bearer token required")
	})

	t.Run("malformed token", func(t *testing.T) {
		w := f.get("/auth/profile", "not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), `"error":"unauthorized"`)
	})

	t.Run("refresh token rejected as access token", func(t *testing.T) {
		pair, err := f.tokens.GenerateTokenPair(context.Background(), user.ID, user.Email)
		require.NoError(t, err)
		w := f.get("/auth/profile", pair.RefreshToken)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		pair, err := f.tokens.GenerateTokenPair(context.Background(), "ghost", "ghost@example.com")
		require.NoError(t, err)
		w := f.get("/auth/profile", pair.AccessToken)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		w := f.get("/auth/profile", access)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), user.ID)
	})
}

func TestRequireAuth_StoreFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserStore(ctrl)
	tokens := mocks.NewMockTokenProvider(ctrl)

	tokens.EXPECT().
		ValidateAccessToken(gomock.Any(), "tok").
		Return(&core.TokenClaims{Subject: "u-1", TokenType: token.TokenTypeAccess}, nil)
	users.EXPECT().
		GetUserByID(gomock.Any(), "u-1").
		Return(nil, errors.New("connection reset"))

	r := gin.New()
	r.GET("/auth/profile", RequireAuth(tokens, users, metrics.NewNoopMetrics()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "server_error")
}

func TestRoleGates(t *testing.T) {
	f := newAuthFixture(t)
	_, userTok := f.createUser(t, "user@example.com", models.RoleUser)
	_, modTok := f.createUser(t, "mod@example.com", models.RoleModerator)
	_, adminTok := f.createUser(t, "admin@example.com", models.RoleAdmin)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"user denied moderator", "/auth/moderator", userTok, http.StatusForbidden},
		{"moderator passes moderator", "/auth/moderator", modTok, http.StatusOK},
		{"admin passes moderator", "/auth/moderator", adminTok, http.StatusOK},
		{"user denied admin", "/auth/admin", userTok, http.StatusForbidden},
		{"moderator denied admin", "/auth/admin", modTok, http.StatusForbidden},
		{"admin passes admin", "/auth/admin", adminTok, http.StatusOK},
		{"anonymous admin", "/auth/admin", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.get(tt.path, tt.token)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusForbidden {
				assert.Contains(t, w.Body.String(), "Access denied")
			}
		})
	}
}

func TestRoleGates_ReadRoleFromStore(t *testing.T) {
	f := newAuthFixture(t)
	user, access := f.createUser(t, "promoted@example.com", models.RoleUser)

	assert.Equal(t, http.StatusForbidden, f.get("/auth/admin", access).Code)

	require.NoError(t, f.store.UpdateUser(context.Background(), user.ID,
		map[string]any{"role": models.RoleAdmin}))

	// Same token, new role
	assert.Equal(t, http.StatusOK, f.get("/auth/admin", access).Code)
}

func TestRequireRole_RecordsDecision(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctrl := gomock.NewController(t)
	m := mocks.NewMockRecorder(ctrl)
	m.EXPECT().RecordGateDecision("moderator", false)

	r := gin.New()
	r.GET("/auth/moderator", func(c *gin.Context) {
		setUser(c, &models.PublicUser{ID: "u-1", Role: models.RoleUser})
	}, RequireModerator(m), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/moderator", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
