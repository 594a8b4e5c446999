package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRecordNotFound wraps GORM's not found error for consistency
	ErrRecordNotFound = errors.New("record not found")

	// ErrStaleRefreshToken is returned by SwapRefreshTokenHash when the stored
	// hash changed between the caller's read and its conditional update.
	ErrStaleRefreshToken = errors.New("refresh token hash no longer current")

	// ErrPasswordHashSet is returned by SetInitialPasswordHash when the account
	// already has a password.
	ErrPasswordHashSet = errors.New("password hash already set")

	// ErrUniqueViolation is matched by every *UniqueViolationError
	ErrUniqueViolation = errors.New("unique constraint violation")
)

// UniqueViolationError reports a write rejected by a unique index.
// Fields lists the offending columns when the driver error names them.
type UniqueViolationError struct {
	Fields []string
	Err    error
}

func (e *UniqueViolationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrUniqueViolation.Error()
	}
	return fmt.Sprintf("%s on %s", ErrUniqueViolation, strings.Join(e.Fields, ", "))
}

func (e *UniqueViolationError) Unwrap() []error {
	return []error{ErrUniqueViolation, e.Err}
}

// HasField reports whether field is among the offending columns
func (e *UniqueViolationError) HasField(field string) bool {
	for _, f := range e.Fields {
		if f == field {
			return true
		}
	}
	return false
}
