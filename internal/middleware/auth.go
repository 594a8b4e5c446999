package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/cockpit-trainer/cockpit-api/internal/core"
	"github.com/cockpit-trainer/cockpit-api/internal/models"
	"github.com/cockpit-trainer/cockpit-api/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	gateAdmin     = "admin"
	gateModerator = "moderator"
)

// ExtractBearerToken returns the token of an "Authorization: Bearer <token>"
// header value. The scheme is case-insensitive.
func ExtractBearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

// RequireAuth resolves the bearer access token into the current user record.
// The role comes from the store on every request, never from the token.
func RequireAuth(tokens core.TokenProvider, users core.UserStore, m core.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := ExtractBearerToken(c.GetHeader("Authorization"))
		if !ok {
			m.RecordTokenValidation("missing")
			abortUnauthorized(c, "Bearer token required")
			return
		}

		claims, err := tokens.ValidateAccessToken(c.Request.Context(), raw)
		if err != nil {
			m.RecordTokenValidation("invalid")
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), claims.Subject)
		if err != nil {
			if !errors.Is(err, store.ErrRecordNotFound) {
				log.Error().Err(err).Msg("Failed to load user for access token")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":             "server_error",
					"error_description": "Failed to resolve identity",
				})
				return
			}
			m.RecordTokenValidation("unknown_user")
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		m.RecordTokenValidation("valid")
		public := user.Public()
		setUser(c, &public)
		c.Next()
	}
}

// RequireAdmin passes only users whose current role is ADMIN.
// It must run after RequireAuth.
func RequireAdmin(m core.Recorder) gin.HandlerFunc {
	return requireRole(gateAdmin, m, func(r models.Role) bool {
		return r == models.RoleAdmin
	})
}

// RequireModerator passes moderators and admins. It must run after RequireAuth.
func RequireModerator(m core.Recorder) gin.HandlerFunc {
	return requireRole(gateModerator, m, func(r models.Role) bool {
		return r == models.RoleModerator || r == models.RoleAdmin
	})
}

func requireRole(gate string, m core.Recorder, allowed func(models.Role) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetUser(c)
		if !ok {
			abortUnauthorized(c, "Authentication required")
			return
		}

		if !allowed(user.Role) {
			m.RecordGateDecision(gate, false)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":             "forbidden",
				"error_description": "Access denied",
			})
			return
		}

		m.RecordGateDecision(gate, true)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, description string) {
	c.Header("WWW-Authenticate", `Bearer realm="cockpit"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":             "unauthorized",
		"error_description": description,
	})
}
