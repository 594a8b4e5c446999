package bootstrap

import (
	"context"

	"github.com/cockpit-trainer/cockpit-api/internal/auth"
	"github.com/cockpit-trainer/cockpit-api/internal/client"
	"github.com/cockpit-trainer/cockpit-api/internal/config"
	"github.com/cockpit-trainer/cockpit-api/internal/core"
	"github.com/cockpit-trainer/cockpit-api/internal/metrics"
	"github.com/cockpit-trainer/cockpit-api/internal/services"
	"github.com/cockpit-trainer/cockpit-api/internal/store"
	"github.com/cockpit-trainer/cockpit-api/internal/token"

	"github.com/rs/zerolog/log"
)

// initializeGoogle builds the ID token verifier and, when a client secret and
// redirect URL are configured, the authorization code provider.
// Both are nil when Google sign-in is disabled.
func initializeGoogle(
	ctx context.Context,
	cfg *config.Config,
) (core.IDTokenVerifier, *auth.OAuthProvider, error) {
	if !cfg.GoogleOAuthEnabled {
		log.Info().Msg("Google sign-in disabled")
		return nil, nil, nil
	}

	httpClient := client.NewOAuthClient(cfg.OAuthTimeout, cfg.OAuthInsecureSkipVerify)
	if cfg.OAuthInsecureSkipVerify {
		log.Warn().Msg("OAuth TLS verification disabled (OAUTH_INSECURE_SKIP_VERIFY=true)")
	}

	verifier, err := auth.NewGoogleVerifier(ctx, cfg.GoogleClientID, httpClient)
	if err != nil {
		return nil, nil, err
	}

	var provider *auth.OAuthProvider
	if cfg.GoogleRedirectFlowEnabled() {
		provider = auth.NewGoogleProvider(auth.OAuthProviderConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       cfg.GoogleOAuthScopes,
		}, httpClient)
		log.Info().Str("redirect_url", cfg.GoogleRedirectURL).Msg("Google redirect flow enabled")
	}

	log.Info().Msg("Google sign-in enabled")
	return verifier, provider, nil
}

// initializeServices creates the session and user services
func initializeServices(
	cfg *config.Config,
	db *store.Store,
	tokens *token.LocalTokenProvider,
	verifier core.IDTokenVerifier,
	auditService *services.AuditService,
	recorder metrics.Recorder,
) (*services.SessionService, *services.UserService) {
	hasher := auth.NewArgon2Hasher(auth.DefaultArgon2Params)

	sessionService := services.NewSessionService(
		db,
		hasher,
		tokens,
		verifier,
		recorder,
		auditService,
		services.SessionOptions{HidePasswordNotSet: cfg.HidePasswordNotSet},
	)
	userService := services.NewUserService(db, hasher, auditService)

	return sessionService, userService
}
