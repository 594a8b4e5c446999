package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/cockpit-trainer/cockpit-api/internal/core"
	"github.com/cockpit-trainer/cockpit-api/internal/middleware"
	"github.com/cockpit-trainer/cockpit-api/internal/services"

	"github.com/gin-gonic/gin"
)

// AuthHandler serves registration, sign-in, token refresh and the
// identity endpoints behind the bearer middleware.
type AuthHandler struct {
	sessions *services.SessionService
	cookie   RefreshCookie
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(sessions *services.SessionService, cookie RefreshCookie) *AuthHandler {
	return &AuthHandler{sessions: sessions, cookie: cookie}
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleLoginRequest struct {
	IDToken string `json:"id_token"`
}

// TokenResponse is returned by every endpoint that opens or rotates a session.
// The refresh token travels only in the cookie.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// issue sets the refresh cookie and writes the access token
func (h *AuthHandler) issue(c *gin.Context, status int, pair *core.TokenPair) {
	h.cookie.set(c, pair.RefreshToken)
	c.JSON(status, TokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(time.Until(pair.AccessExpiresAt).Seconds()),
	})
}

// Register godoc
//
//	@Summary	Register a password account
//	@Tags		Auth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		registerRequest	true	"New account"
//	@Success	201		{object}	TokenResponse
//	@Failure	400		{object}	errorResponse
//	@Failure	409		{object}	errorResponse	"Email or username taken"
//	@Router		/auth/registration [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid registration body")
		return
	}

	pair, err := h.sessions.SignUp(c.Request.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	h.issue(c, http.StatusCreated, pair)
}

// Login godoc
//
//	@Summary	Sign in with email and password
//	@Tags		Auth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		loginRequest	true	"Credentials"
//	@Success	200		{object}	TokenResponse
//	@Failure	401		{object}	errorResponse
//	@Failure	403		{object}	errorResponse	"Account has no password"
//	@Router		/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid login body")
		return
	}

	pair, err := h.sessions.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	h.issue(c, http.StatusOK, pair)
}

// GoogleLogin godoc
//
//	@Summary	Sign in with a Google ID token
//	@Tags		Auth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		googleLoginRequest	true	"Google ID token"
//	@Success	200		{object}	TokenResponse
//	@Failure	401		{object}	errorResponse
//	@Router		/auth/google [post]
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	var req googleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IDToken == "" {
		respondBadRequest(c, "id_token is required")
		return
	}

	pair, err := h.sessions.SignInWithGoogle(c.Request.Context(), req.IDToken)
	if err != nil {
		respondError(c, err)
		return
	}
	h.issue(c, http.StatusOK, pair)
}

// Refresh godoc
//
//	@Summary		Rotate the refresh token
//	@Description	Reads the refresh cookie, returns a new access token and replaces the cookie.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	TokenResponse
//	@Failure		401	{object}	errorResponse
//	@Router			/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	raw := h.cookie.read(c)
	if raw == "" {
		respondError(c, services.ErrInvalidRefreshToken)
		return
	}

	pair, err := h.sessions.RefreshTokens(c.Request.Context(), raw)
	if err != nil {
		// Keep the cookie on server errors; the stored hash was not rotated
		if errors.Is(err, services.ErrInvalidRefreshToken) {
			h.cookie.clear(c)
		}
		respondError(c, err)
		return
	}
	h.issue(c, http.StatusOK, pair)
}

// Logout godoc
//
//	@Summary	Revoke the current session
//	@Tags		Auth
//	@Security	BearerAuth
//	@Success	204
//	@Failure	401	{object}	errorResponse
//	@Router		/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		respondError(c, services.ErrUnauthenticated)
		return
	}

	if err := h.sessions.Logout(c.Request.Context(), user.ID); err != nil {
		respondError(c, err)
		return
	}
	h.cookie.clear(c)
	c.Status(http.StatusNoContent)
}

// Me godoc
//
//	@Summary	Current user
//	@Tags		Auth
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	models.PublicUser
//	@Failure	401	{object}	errorResponse
//	@Failure	404	{object}	errorResponse
//	@Router		/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		respondError(c, services.ErrUnauthenticated)
		return
	}

	me, err := h.sessions.GetMe(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, me)
}

// Identity echoes the identity resolved by the middleware chain. It backs the
// /auth/profile, /auth/admin and /auth/moderator gate checks.
//
//	@Summary	Gate check
//	@Tags		Auth
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	models.PublicUser
//	@Failure	401	{object}	errorResponse
//	@Failure	403	{object}	errorResponse
//	@Router		/auth/profile [get]
//	@Router		/auth/admin [get]
//	@Router		/auth/moderator [get]
func (h *AuthHandler) Identity(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		respondError(c, services.ErrUnauthenticated)
		return
	}
	c.JSON(http.StatusOK, user)
}
