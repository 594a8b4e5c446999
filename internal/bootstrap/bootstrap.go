package bootstrap

import (
	"context"
	"net/http"

	"github.com/cockpit-trainer/cockpit-api/internal/auth"
	"github.com/cockpit-trainer/cockpit-api/internal/config"
	"github.com/cockpit-trainer/cockpit-api/internal/core"
	"github.com/cockpit-trainer/cockpit-api/internal/metrics"
	"github.com/cockpit-trainer/cockpit-api/internal/services"
	"github.com/cockpit-trainer/cockpit-api/internal/store"
	"github.com/cockpit-trainer/cockpit-api/internal/token"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Application holds all initialized components
type Application struct {
	Config *config.Config

	// Core infrastructure
	DB                   *store.Store
	MetricsRecorder      metrics.Recorder
	MetricsCache         core.Cache[int64]
	MetricsCacheCloser   func() error
	RateLimitRedisClient *redis.Client

	// Identity providers
	Tokens         *token.LocalTokenProvider
	GoogleVerifier core.IDTokenVerifier
	GoogleProvider *auth.OAuthProvider

	// Services
	AuditService   *services.AuditService
	SessionService *services.SessionService
	UserService    *services.UserService

	// HTTP
	HandlerSet handlerSet
	Router     *gin.Engine
	Server     *http.Server
}

// Run initializes and starts the application
func Run(ctx context.Context, cfg *config.Config) error {
	app := &Application{Config: cfg}

	// Phase 1: Validate configuration
	if err := validateAllConfiguration(cfg); err != nil {
		return err
	}

	// Phase 2: Initialize infrastructure
	if err := app.initializeInfrastructure(ctx); err != nil {
		return err
	}

	// Phase 3: Initialize business layer
	if err := app.initializeBusinessLayer(ctx); err != nil {
		return err
	}

	// Phase 4: Initialize HTTP layer
	if err := app.initializeHTTPLayer(); err != nil {
		return err
	}

	// Phase 5: Start server with graceful shutdown
	app.startWithGracefulShutdown()

	return nil
}

// initializeInfrastructure sets up database, metrics, cache, and Redis
func (app *Application) initializeInfrastructure(ctx context.Context) error {
	var err error

	app.DB, err = initializeDatabase(ctx, app.Config)
	if err != nil {
		return err
	}

	app.MetricsRecorder = initializeMetrics(app.Config)
	app.MetricsCache, app.MetricsCacheCloser, err = initializeMetricsCache(ctx, app.Config)
	if err != nil {
		return err
	}

	// Redis (for rate limiting)
	app.RateLimitRedisClient, err = initializeRateLimitRedisClient(ctx, app.Config)
	if err != nil {
		return err
	}

	return nil
}

// initializeBusinessLayer sets up token signing, Google sign-in and services
func (app *Application) initializeBusinessLayer(ctx context.Context) error {
	var err error

	// Audit service (required by other services)
	app.AuditService = services.NewAuditService(
		app.DB,
		app.Config.EnableAuditLogging,
		app.Config.AuditLogBufferSize,
	)

	app.Tokens = token.NewLocalTokenProvider(app.Config)
	app.GoogleVerifier, app.GoogleProvider, err = initializeGoogle(ctx, app.Config)
	if err != nil {
		return err
	}

	app.SessionService, app.UserService = initializeServices(
		app.Config,
		app.DB,
		app.Tokens,
		app.GoogleVerifier,
		app.AuditService,
		app.MetricsRecorder,
	)
	return nil
}

// initializeHTTPLayer sets up handlers, router, and server
func (app *Application) initializeHTTPLayer() error {
	app.HandlerSet = initializeHandlers(
		app.Config,
		app.SessionService,
		app.UserService,
		app.AuditService,
		app.GoogleProvider,
	)

	rateLimiters, err := setupRateLimiting(app.Config, app.AuditService, app.RateLimitRedisClient)
	if err != nil {
		return err
	}

	app.Router = setupRouter(
		app.Config,
		app.DB,
		app.HandlerSet,
		routeDeps{
			tokens:  app.Tokens,
			users:   app.DB,
			metrics: app.MetricsRecorder,
			limits:  rateLimiters,
		},
	)

	app.Server = createHTTPServer(app.Config, app.Router)
	return nil
}

// startWithGracefulShutdown starts the server and handles graceful shutdown
func (app *Application) startWithGracefulShutdown() {
	m := graceful.NewManager()

	addServerRunningJob(m, app.Server)
	addServerShutdownJob(m, app.Server)
	addRedisClientShutdownJob(m, app.RateLimitRedisClient)
	addAuditServiceShutdownJob(m, app.AuditService)
	addAuditLogCleanupJob(m, app.Config, app.AuditService)
	addMetricsGaugeUpdateJob(m, app.Config, app.DB, app.MetricsRecorder, app.MetricsCache)
	addCacheCleanupJob(m, app.MetricsCacheCloser)
	addDatabaseCloseJob(m, app.DB)

	// Wait for graceful shutdown
	<-m.Done()
}
