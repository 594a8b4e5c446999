package handlers

import (
	"errors"
	"net/http"

	"github.com/cockpit-trainer/cockpit-api/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// errorResponse is the JSON body of every failed request
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

// Order matters only for errors that wrap more than one sentinel.
var errorMappings = []errorMapping{
	{services.ErrEmailTaken, http.StatusConflict, "email_taken"},
	{services.ErrUsernameTaken, http.StatusConflict, "username_taken"},
	{services.ErrCredentialsTaken, http.StatusConflict, "credentials_taken"},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{services.ErrPasswordNotSet, http.StatusForbidden, "password_not_set"},
	{services.ErrInvalidExternalToken, http.StatusUnauthorized, "invalid_external_token"},
	{services.ErrInvalidRefreshToken, http.StatusUnauthorized, "invalid_refresh_token"},
	{services.ErrUnauthenticated, http.StatusUnauthorized, "unauthorized"},
	{services.ErrForbidden, http.StatusForbidden, "forbidden"},
	{services.ErrUserNotFound, http.StatusNotFound, "not_found"},
	{services.ErrCurrentPasswordRequired, http.StatusBadRequest, "current_password_required"},
	{services.ErrCurrentPasswordIncorrect, http.StatusForbidden, "current_password_incorrect"},
	{services.ErrPasswordAlreadySet, http.StatusConflict, "password_already_set"},
	{services.ErrInvalidRole, http.StatusBadRequest, "invalid_request"},
	{services.ErrValidation, http.StatusBadRequest, "invalid_request"},
}

// classifyError maps a service error onto an HTTP status and error code.
// Anything unrecognised is a 500 whose cause stays in the server log.
func classifyError(err error) (int, errorResponse) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			desc := m.target.Error()
			var ve *services.ValidationError
			if errors.As(err, &ve) {
				desc = ve.Error()
			}
			return m.status, errorResponse{Error: m.code, ErrorDescription: desc}
		}
	}
	return http.StatusInternalServerError, errorResponse{
		Error:            "server_error",
		ErrorDescription: "Internal server error",
	}
}

func respondError(c *gin.Context, err error) {
	status, body := classifyError(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("Request failed")
	}
	c.AbortWithStatusJSON(status, body)
}

// respondBadRequest reports a body or parameter that could not be decoded
func respondBadRequest(c *gin.Context, description string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
		Error:            "invalid_request",
		ErrorDescription: description,
	})
}
