package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/cockpit-trainer/cockpit-api/internal/services"
	"github.com/cockpit-trainer/cockpit-api/internal/util"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	sessionKeyState    = "oauth_state"
	sessionKeyRedirect = "oauth_redirect"
)

// CodeExchanger runs the provider side of the authorization code flow
type CodeExchanger interface {
	GetAuthURL(state string) string
	ExchangeIDToken(ctx context.Context, code string) (string, error)
}

// OAuthHandler drives the browser redirect variant of Google sign-in. The
// id_token obtained from the code exchange goes through the same session
// service path as a directly posted one.
type OAuthHandler struct {
	google      CodeExchanger
	sessions    *services.SessionService
	cookie      RefreshCookie
	frontendURL string
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(
	google CodeExchanger,
	sessions *services.SessionService,
	cookie RefreshCookie,
	frontendURL string,
) *OAuthHandler {
	return &OAuthHandler{
		google:      google,
		sessions:    sessions,
		cookie:      cookie,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// GoogleLogin godoc
//
//	@Summary		Start Google sign-in
//	@Description	Stores a CSRF state in the session cookie and redirects to Google.
//	@Tags			OAuth
//	@Param			redirect	query	string	false	"Frontend path or URL to land on afterwards"
//	@Success		307
//	@Failure		400	{object}	errorResponse
//	@Router			/auth/google/login [get]
func (h *OAuthHandler) GoogleLogin(c *gin.Context) {
	landing, ok := util.ResolveFrontendRedirect(c.Query("redirect"), h.frontendURL)
	if !ok {
		respondBadRequest(c, "Unsafe redirect target")
		return
	}

	state, err := util.OAuthState()
	if err != nil {
		respondError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(sessionKeyState, state)
	session.Set(sessionKeyRedirect, landing)
	if err := session.Save(); err != nil {
		respondError(c, err)
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, h.google.GetAuthURL(state))
}

// GoogleCallback godoc
//
//	@Summary		Finish Google sign-in
//	@Description	Verifies state, exchanges the code, sets the refresh cookie and redirects to the frontend.
//	@Tags			OAuth
//	@Param			code	query	string	true	"Authorization code"
//	@Param			state	query	string	true	"CSRF state"
//	@Success		302
//	@Failure		400	{object}	errorResponse
//	@Failure		401	{object}	errorResponse
//	@Router			/auth/google/callback [get]
func (h *OAuthHandler) GoogleCallback(c *gin.Context) {
	if providerErr := c.Query("error"); providerErr != "" {
		log.Warn().Str("provider_error", providerErr).Msg("Google sign-in declined")
		respondError(c, services.ErrInvalidExternalToken)
		return
	}

	session := sessions.Default(c)
	saved, _ := session.Get(sessionKeyState).(string)
	state := c.Query("state")
	if saved == "" || state != saved {
		respondBadRequest(c, "OAuth state mismatch. Please try again.")
		return
	}

	landing, _ := session.Get(sessionKeyRedirect).(string)
	session.Delete(sessionKeyState)
	session.Delete(sessionKeyRedirect)
	if err := session.Save(); err != nil {
		respondError(c, err)
		return
	}

	code := c.Query("code")
	if code == "" {
		respondBadRequest(c, "code is required")
		return
	}

	idToken, err := h.google.ExchangeIDToken(c.Request.Context(), code)
	if err != nil {
		log.Warn().Err(err).Msg("Google code exchange failed")
		respondError(c, services.ErrInvalidExternalToken)
		return
	}

	pair, err := h.sessions.SignInWithGoogle(c.Request.Context(), idToken)
	if err != nil {
		respondError(c, err)
		return
	}

	h.cookie.set(c, pair.RefreshToken)
	if landing == "" {
		landing = h.frontendURL + "/"
	}
	c.Redirect(http.StatusFound, landing)
}
