package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cockpit-trainer/cockpit-api/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		ServerAddr:             ":0",
		BaseURL:                "http://localhost:3333",
		FrontendURL:            "http://localhost:3000",
		JWTSecret:              "bootstrap-test-secret",
		AccessTokenExpiration:  5 * time.Minute,
		RefreshTokenExpiration: 7 * 24 * time.Hour,
		RefreshCookieName:      "refresh_token",
		DatabaseDriver:         config.DatabaseDriverSQLite,
		DatabaseDSN:            ":memory:",
		DBInitTimeout:          5 * time.Second,
		SessionSecret:          "bootstrap-session-secret",
		SessionMaxAge:          600,
		EnableRateLimit:        true,
		RateLimitStore:         config.RateLimitStoreMemory,
		LoginRateLimit:         10,
		RegisterRateLimit:      5,
		RefreshRateLimit:       30,
		GoogleLoginRateLimit:   10,
		MetricsCacheType:       config.MetricsCacheTypeMemory,
		CacheInitTimeout:       time.Second,
	}
}

// newTestApp runs every start-up phase except serving
func newTestApp(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	gin.SetMode(gin.TestMode)

	app := &Application{Config: cfg}
	require.NoError(t, validateAllConfiguration(cfg))
	require.NoError(t, app.initializeInfrastructure(context.Background()))
	require.NoError(t, app.initializeBusinessLayer(context.Background()))
	require.NoError(t, app.initializeHTTPLayer())
	t.Cleanup(func() {
		_ = app.AuditService.Shutdown(context.Background())
		_ = app.DB.Close()
	})
	return app
}

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestValidateAllConfiguration(t *testing.T) {
	assert.NoError(t, validateAllConfiguration(testConfig()))

	cfg := testConfig()
	cfg.JWTSecret = ""
	err := validateAllConfiguration(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
}

func TestValidateGoogleConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr string
	}{
		{
			name:   "disabled",
			mutate: func(cfg *config.Config) {},
		},
		{
			name: "id token only",
			mutate: func(cfg *config.Config) {
				cfg.GoogleOAuthEnabled = true
				cfg.GoogleClientID = "client-id"
			},
		},
		{
			name: "secret without redirect url",
			mutate: func(cfg *config.Config) {
				cfg.GoogleOAuthEnabled = true
				cfg.GoogleClientID = "client-id"
				cfg.GoogleClientSecret = "secret"
			},
			wantErr: "GOOGLE_REDIRECT_URL is required",
		},
		{
			name: "default session secret in production",
			mutate: func(cfg *config.Config) {
				cfg.IsProduction = true
				cfg.GoogleOAuthEnabled = true
				cfg.GoogleClientID = "client-id"
				cfg.GoogleClientSecret = "secret"
				cfg.GoogleRedirectURL = "https://api.example.com/auth/google/callback"
				cfg.SessionSecret = defaultSessionSecret
			},
			wantErr: "SESSION_SECRET must be set",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			err := validateGoogleConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitializeMetrics(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		cfg := &config.Config{MetricsEnabled: enabled}
		m := initializeMetrics(cfg)
		require.NotNil(t, m)
	}
}

func TestInitializeMetricsCacheDisabled(t *testing.T) {
	ctx := context.Background()

	// Metrics disabled - no cache
	c, closer, err := initializeMetricsCache(
		ctx,
		&config.Config{MetricsEnabled: false, MetricsGaugeUpdateEnabled: true},
	)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Nil(t, closer)

	// Gauge updates disabled - no cache
	c, closer, err = initializeMetricsCache(
		ctx,
		&config.Config{MetricsEnabled: true, MetricsGaugeUpdateEnabled: false},
	)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Nil(t, closer)
}

func TestInitializeMetricsCacheMemory(t *testing.T) {
	cfg := testConfig()
	cfg.MetricsEnabled = true
	cfg.MetricsGaugeUpdateEnabled = true

	c, closer, err := initializeMetricsCache(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, c)
	require.NotNil(t, closer)
	assert.NoError(t, closer())
}

func TestInitializeRateLimitRedisClientSkipped(t *testing.T) {
	client, err := initializeRateLimitRedisClient(context.Background(), testConfig())
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestInitializeGoogleDisabled(t *testing.T) {
	verifier, provider, err := initializeGoogle(context.Background(), testConfig())
	require.NoError(t, err)
	assert.Nil(t, verifier)
	assert.Nil(t, provider)
}

func TestSetupRateLimitingDisabled(t *testing.T) {
	limiters, err := setupRateLimiting(&config.Config{EnableRateLimit: false}, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, limiters.login)
	require.NotNil(t, limiters.register)
	require.NotNil(t, limiters.refresh)
	require.NotNil(t, limiters.google)

	// Verify noop middlewares don't panic
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	assert.NotPanics(t, func() { limiters.login(c) })
}

func TestSetupRateLimitingMemory(t *testing.T) {
	limiters, err := setupRateLimiting(testConfig(), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, limiters.login)
	require.NotNil(t, limiters.register)
	require.NotNil(t, limiters.refresh)
	require.NotNil(t, limiters.google)
}

func TestSetupRateLimitingInvalid(t *testing.T) {
	cfg := testConfig()
	cfg.RegisterRateLimit = 0

	_, err := setupRateLimiting(cfg, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registration")

	cfg = testConfig()
	cfg.RateLimitStore = config.RateLimitStoreRedis
	_, err = setupRateLimiting(cfg, nil, nil)
	require.Error(t, err)
}

func TestCreateHTTPServer(t *testing.T) {
	srv := createHTTPServer(
		&config.Config{ServerAddr: ":8080"},
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)
	require.NotNil(t, srv)
	assert.Equal(t, ":8080", srv.Addr)
	assert.Equal(t, 10*time.Second, srv.ReadHeaderTimeout)
}

type fakeHealth struct{ err error }

func (f fakeHealth) Health(context.Context) error { return f.err }

func TestHealthCheckHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, tt := range []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"healthy", nil, http.StatusOK, `{"status":"healthy","database":"connected"}`},
		{
			"unhealthy",
			errors.New("connection refused"),
			http.StatusServiceUnavailable,
			`{"status":"unhealthy","database":"disconnected"}`,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/health", createHealthCheckHandler(fakeHealth{err: tt.err}))

			w := serve(r, http.MethodGet, "/health")
			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

func TestSetupMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	setupMetricsEndpoint(r, &config.Config{MetricsEnabled: false})
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/metrics").Code)

	r = gin.New()
	setupMetricsEndpoint(r, &config.Config{MetricsEnabled: true, MetricsToken: "scrape"})
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/metrics").Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer scrape")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter(t *testing.T) {
	app := newTestApp(t, testConfig())
	assert.Nil(t, app.HandlerSet.oauth)

	w := serve(app.Router, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)

	// Guarded routes exist and reject anonymous callers
	for _, path := range []string{"/auth/me", "/auth/profile", "/users/all", "/admin/audit"} {
		assert.Equal(t, http.StatusUnauthorized, serve(app.Router, http.MethodGet, path).Code, path)
	}

	// Redirect flow routes are not mounted without a client secret
	assert.Equal(t, http.StatusNotFound, serve(app.Router, http.MethodGet, "/auth/google/login").Code)

	w = serve(app.Router, http.MethodPost, "/auth/refresh")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_refresh_token")
}

func TestRouter_RegisterAndMe(t *testing.T) {
	app := newTestApp(t, testConfig())

	req := httptest.NewRequest(
		http.MethodPost,
		"/auth/registration",
		strings.NewReader(`{"email":"a@x.com","username":"alice","password":"p1"}`),
	)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Set-Cookie"), "refresh_token=")
}

func TestRouter_CORS(t *testing.T) {
	app := newTestApp(t, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRouter_SwaggerOnlyInDevelopment(t *testing.T) {
	app := newTestApp(t, testConfig())
	assert.NotEqual(
		t,
		http.StatusNotFound,
		serve(app.Router, http.MethodGet, "/swagger/index.html").Code,
	)

	cfg := testConfig()
	cfg.IsProduction = true
	prod := newTestApp(t, cfg)
	t.Cleanup(func() { gin.SetMode(gin.TestMode) })
	assert.Equal(t, http.StatusNotFound, serve(prod.Router, http.MethodGet, "/swagger/index.html").Code)
}
