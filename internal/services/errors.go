package services

import (
	"errors"
	"fmt"
)

// Credential conflicts
var (
	ErrEmailTaken       = errors.New("email already taken")
	ErrUsernameTaken    = errors.New("username already taken")
	ErrCredentialsTaken = errors.New("credentials already taken")
)

// Authentication and session failures
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPasswordNotSet     = errors.New(
		"password not set; sign in with Google or set a password first",
	)
	ErrInvalidExternalToken = errors.New("invalid external identity token")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")
	ErrUnauthenticated      = errors.New("authentication required")
	ErrForbidden            = errors.New("insufficient role")
)

// Account management
var (
	ErrUserNotFound             = errors.New("user not found")
	ErrCurrentPasswordRequired  = errors.New("current password required")
	ErrCurrentPasswordIncorrect = errors.New("current password incorrect")
	ErrPasswordAlreadySet       = errors.New("password already set")
	ErrInvalidRole              = errors.New("invalid role")
)

// ErrValidation is matched by every *ValidationError
var ErrValidation = errors.New("validation failed")

// ValidationError reports a request field that failed input validation
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
