package bootstrap

import (
	"context"
	"net/http"
	"time"

	"github.com/cockpit-trainer/cockpit-api/internal/config"
	"github.com/cockpit-trainer/cockpit-api/internal/core"
	"github.com/cockpit-trainer/cockpit-api/internal/metrics"
	"github.com/cockpit-trainer/cockpit-api/internal/middleware"
	"github.com/cockpit-trainer/cockpit-api/internal/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const healthCheckTimeout = 2 * time.Second

// healthChecker is satisfied by *store.Store
type healthChecker interface {
	Health(ctx context.Context) error
}

// routeDeps carries what the route guards need besides the handlers
type routeDeps struct {
	tokens  core.TokenProvider
	users   core.UserStore
	metrics metrics.Recorder
	limits  rateLimitMiddlewares
}

// setupRouter configures the Gin router with all routes and middleware
func setupRouter(
	cfg *config.Config,
	db healthChecker,
	h handlerSet,
	deps routeDeps,
) *gin.Engine {
	setupGinMode(cfg)
	r := gin.New()

	r.Use(metrics.HTTPMetricsMiddleware(deps.metrics))
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(util.RequestContextMiddleware())
	r.Use(cors.New(corsConfig(cfg)))

	// Sessions only carry OAuth state between the redirect legs
	setupSessionMiddleware(r, cfg)

	r.GET("/health", createHealthCheckHandler(db))
	setupMetricsEndpoint(r, cfg)

	setupAllRoutes(r, cfg, h, deps)

	logServerStartup(cfg)
	return r
}

// corsConfig allows the configured frontend to call the API with credentials
func corsConfig(cfg *config.Config) cors.Config {
	return cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           5 * time.Minute,
	}
}

// setupSessionMiddleware configures session handling middleware
func setupSessionMiddleware(r *gin.Engine, cfg *config.Config) {
	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.IsProduction,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("oauth_session", sessionStore))
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config) {
	switch {
	case !cfg.MetricsEnabled:
		log.Info().Msg("Prometheus metrics disabled")
	case cfg.MetricsToken != "":
		log.Info().Msg("Prometheus metrics enabled at /metrics with Bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuthMiddleware(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		log.Warn().Msg("Prometheus metrics enabled at /metrics (no authentication)")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// setupAllRoutes configures all application routes
func setupAllRoutes(
	r *gin.Engine,
	cfg *config.Config,
	h handlerSet,
	deps routeDeps,
) {
	// Swagger documentation (development only)
	if !cfg.IsProduction {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
		log.Info().Str("url", cfg.BaseURL+"/swagger/index.html").Msg("Swagger UI enabled")
	}

	requireAuth := middleware.RequireAuth(deps.tokens, deps.users, deps.metrics)
	requireAdmin := middleware.RequireAdmin(deps.metrics)
	requireModerator := middleware.RequireModerator(deps.metrics)

	// Public session routes
	public := r.Group("/auth")
	{
		public.POST("/registration", deps.limits.register, h.auth.Register)
		public.POST("/login", deps.limits.login, h.auth.Login)
		public.POST("/google", deps.limits.google, h.auth.GoogleLogin)
		public.POST("/refresh", deps.limits.refresh, h.auth.Refresh)
	}

	// Google authorization code flow (browser redirects)
	if h.oauth != nil {
		public.GET("/google/login", deps.limits.google, h.oauth.GoogleLogin)
		public.GET("/google/callback", h.oauth.GoogleCallback)
	}

	// Authenticated session routes and gate checks
	authed := r.Group("/auth", requireAuth)
	{
		authed.POST("/logout", h.auth.Logout)
		authed.GET("/me", h.auth.Me)
		authed.GET("/profile", h.auth.Identity)
		authed.GET("/admin", requireAdmin, h.auth.Identity)
		authed.GET("/moderator", requireModerator, h.auth.Identity)
	}

	// User management
	users := r.Group("/users", requireAuth)
	{
		users.GET("/all", requireModerator, h.users.ListUsers)
		users.PATCH("/edit", h.users.EditUser)
		users.POST("/password", h.users.SetPassword)
		users.PATCH("/verify/:userId", requireAdmin, h.users.ToggleVerified)
		users.PATCH("/:userId/role", requireAdmin, h.users.SetRole)
	}

	// Audit trail (admin only)
	admin := r.Group("/admin", requireAuth, requireAdmin)
	{
		admin.GET("/audit", h.audit.ListAuditLogs)
		admin.GET("/audit/export", h.audit.ExportAuditLogs)
	}
}

// healthCheck godoc
//
//	@Summary		Health check
//	@Description	Check server and database health status
//	@Tags			System
//	@Produce		json
//	@Success		200	{object}	object{status=string,database=string}	"Service is healthy"
//	@Failure		503	{object}	object{status=string,database=string}	"Service is unhealthy"
//	@Router			/health [get]
func createHealthCheckHandler(db healthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		if err := db.Health(ctx); err != nil {
			log.Error().Err(err).Msg("Health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "disconnected",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"database": "connected",
		})
	}
}

// setupGinMode sets Gin mode based on environment configuration
func setupGinMode(cfg *config.Config) {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
		log.Info().Msg("Gin mode: Release (production)")
		return
	}
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.DebugMode)
	}
	log.Info().Str("mode", gin.Mode()).Msg("Gin mode")
}

// logServerStartup logs server startup information
func logServerStartup(cfg *config.Config) {
	log.Info().
		Str("addr", cfg.ServerAddr).
		Str("frontend", cfg.FrontendURL).
		Bool("google", cfg.GoogleOAuthEnabled).
		Bool("google_redirect", cfg.GoogleRedirectFlowEnabled()).
		Msg("Cockpit API server starting")
}
