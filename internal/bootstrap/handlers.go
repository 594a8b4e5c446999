package bootstrap

import (
	"github.com/cockpit-trainer/cockpit-api/internal/auth"
	"github.com/cockpit-trainer/cockpit-api/internal/config"
	"github.com/cockpit-trainer/cockpit-api/internal/handlers"
	"github.com/cockpit-trainer/cockpit-api/internal/services"
)

// handlerSet holds all HTTP handlers
type handlerSet struct {
	auth  *handlers.AuthHandler
	oauth *handlers.OAuthHandler // nil unless the Google redirect flow is configured
	users *handlers.UserHandler
	audit *handlers.AuditHandler
}

// refreshCookie derives the refresh cookie settings from configuration
func refreshCookie(cfg *config.Config) handlers.RefreshCookie {
	return handlers.RefreshCookie{
		Name:   cfg.RefreshCookieName,
		MaxAge: cfg.RefreshTokenExpiration,
		Secure: cfg.IsProduction,
	}
}

// initializeHandlers creates all HTTP handlers
func initializeHandlers(
	cfg *config.Config,
	sessionService *services.SessionService,
	userService *services.UserService,
	auditService *services.AuditService,
	googleProvider *auth.OAuthProvider,
) handlerSet {
	cookie := refreshCookie(cfg)

	set := handlerSet{
		auth:  handlers.NewAuthHandler(sessionService, cookie),
		users: handlers.NewUserHandler(userService),
		audit: handlers.NewAuditHandler(auditService),
	}
	if googleProvider != nil {
		set.oauth = handlers.NewOAuthHandler(googleProvider, sessionService, cookie, cfg.FrontendURL)
	}
	return set
}
