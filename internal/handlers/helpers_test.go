package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cockpit-trainer/cockpit-api/internal/auth"
	"github.com/cockpit-trainer/cockpit-api/internal/config"
	"github.com/cockpit-trainer/cockpit-api/internal/core"
	"github.com/cockpit-trainer/cockpit-api/internal/metrics"
	"github.com/cockpit-trainer/cockpit-api/internal/middleware"
	"github.com/cockpit-trainer/cockpit-api/internal/mocks"
	"github.com/cockpit-trainer/cockpit-api/internal/models"
	"github.com/cockpit-trainer/cockpit-api/internal/services"
	"github.com/cockpit-trainer/cockpit-api/internal/store"
	"github.com/cockpit-trainer/cockpit-api/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var testCookie = RefreshCookie{
	Name:   "refresh_token",
	MaxAge: 7 * 24 * time.Hour,
}

type apiFixture struct {
	store    *store.Store
	sessions *services.SessionService
	users    *services.UserService
	audit    *services.AuditService
	router   *gin.Engine
}

// newAPIFixture wires the real services over an in-memory database and
// mounts the public routes. identities backs the Google verifier.
func newAPIFixture(t *testing.T, identities map[string]*core.ExternalIdentity) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s, err := store.New(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	hasher := auth.NewArgon2Hasher(auth.Argon2Params{
		Memory:      1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	tokens := token.NewLocalTokenProvider(&config.Config{
		BaseURL:                "http://localhost:3333",
		JWTSecret:              "handler-test-secret",
		AccessTokenExpiration:  5 * time.Minute,
		RefreshTokenExpiration: 7 * 24 * time.Hour,
	})
	m := metrics.NewNoopMetrics()
	audit := services.NewAuditService(s, false, 0)

	f := &apiFixture{
		store: s,
		sessions: services.NewSessionService(
			s, hasher, tokens, googleVerifier(t, identities), m, audit, services.SessionOptions{},
		),
		users: services.NewUserService(s, hasher, audit),
		audit: audit,
	}

	authHandler := NewAuthHandler(f.sessions, testCookie)
	userHandler := NewUserHandler(f.users)
	auditHandler := NewAuditHandler(audit)
	requireAuth := middleware.RequireAuth(tokens, s, m)

	r := gin.New()
	public := r.Group("/auth")
	public.POST("/registration", authHandler.Register)
	public.POST("/login", authHandler.Login)
	public.POST("/google", authHandler.GoogleLogin)
	public.POST("/refresh", authHandler.Refresh)

	authed := r.Group("/auth", requireAuth)
	authed.POST("/logout", authHandler.Logout)
	authed.GET("/me", authHandler.Me)
	authed.GET("/profile", authHandler.Identity)
	authed.GET("/admin", middleware.RequireAdmin(m), authHandler.Identity)
	authed.GET("/moderator", middleware.RequireModerator(m), authHandler.Identity)

	users := r.Group("/users", requireAuth)
	users.GET("/all", middleware.RequireModerator(m), userHandler.ListUsers)
	users.PATCH("/edit", userHandler.EditUser)
	users.POST("/password", userHandler.SetPassword)
	users.PATCH("/verify/:userId", middleware.RequireAdmin(m), userHandler.ToggleVerified)
	users.PATCH("/:userId/role", middleware.RequireAdmin(m), userHandler.SetRole)

	admin := r.Group("/admin", requireAuth, middleware.RequireAdmin(m))
	admin.GET("/audit", auditHandler.ListAuditLogs)
	admin.GET("/audit/export", auditHandler.ExportAuditLogs)

	f.router = r
	return f
}

func googleVerifier(
	t *testing.T,
	identities map[string]*core.ExternalIdentity,
) *mocks.MockIDTokenVerifier {
	t.Helper()
	ctrl := gomock.NewController(t)
	v := mocks.NewMockIDTokenVerifier(ctrl)
	v.EXPECT().Name().Return(models.ProviderGoogle).AnyTimes()
	v.EXPECT().VerifyIDToken(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, idToken string) (*core.ExternalIdentity, error) {
			if identity, ok := identities[idToken]; ok {
				return identity, nil
			}
			return nil, auth.ErrInvalidIDToken
		},
	).AnyTimes()
	return v
}

type request struct {
	method string
	path   string
	body   any
	bearer string
	cookie *http.Cookie
}

func (f *apiFixture) do(t *testing.T, r request) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if r.body != nil {
		if raw, ok := r.body.(string); ok {
			body.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&body).Encode(r.body))
		}
	}

	req := httptest.NewRequest(r.method, r.path, &body)
	req.Header.Set("Content-Type", "application/json")
	if r.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+r.bearer)
	}
	if r.cookie != nil {
		req.AddCookie(r.cookie)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// register signs up a user over HTTP and returns its access token and refresh cookie
func (f *apiFixture) register(t *testing.T, email, username, password string) (string, *http.Cookie) {
	t.Helper()
	w := f.do(t, request{
		method: http.MethodPost,
		path:   "/auth/registration",
		body:   gin.H{"email": email, "username": username, "password": password},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeToken(t, w).AccessToken, refreshCookie(t, w)
}

func decodeToken(t *testing.T, w *httptest.ResponseRecorder) TokenResponse {
	t.Helper()
	var resp TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// refreshCookie returns the refresh cookie set by the response, or nil
func refreshCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	resp := http.Response{Header: w.Header()}
	for _, c := range resp.Cookies() {
		if c.Name == testCookie.Name {
			return c
		}
	}
	return nil
}
