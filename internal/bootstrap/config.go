package bootstrap

import (
	"errors"
	"fmt"

	"github.com/cockpit-trainer/cockpit-api/internal/config"

	"github.com/rs/zerolog/log"
)

const defaultSessionSecret = "session-secret-change-in-production"

// validateAllConfiguration validates all configuration settings
func validateAllConfiguration(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validateGoogleConfig(cfg); err != nil {
		return fmt.Errorf("invalid Google sign-in configuration: %w", err)
	}
	if cfg.IsProduction && cfg.RefreshSecret() == cfg.JWTSecret {
		log.Warn().Msg("JWT_REFRESH_SECRET is not set; refresh tokens share the access token secret")
	}
	return nil
}

// validateGoogleConfig checks the redirect flow prerequisites
func validateGoogleConfig(cfg *config.Config) error {
	if !cfg.GoogleOAuthEnabled {
		return nil
	}
	if cfg.GoogleClientSecret != "" && cfg.GoogleRedirectURL == "" {
		return errors.New("GOOGLE_REDIRECT_URL is required when GOOGLE_CLIENT_SECRET is set")
	}
	if cfg.GoogleRedirectFlowEnabled() && cfg.IsProduction &&
		(cfg.SessionSecret == "" || cfg.SessionSecret == defaultSessionSecret) {
		return errors.New("SESSION_SECRET must be set in production for the Google redirect flow")
	}
	return nil
}
