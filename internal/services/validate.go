package services

import (
	"net/mail"
	"strings"
	"unicode"
)

const (
	maxEmailLength    = 254
	maxUsernameLength = 30
	// Bounds argon2 input; longer inputs are rejected before hashing
	maxPasswordLength = 256
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return &ValidationError{Field: "email", Message: "is required"}
	}
	if len(email) > maxEmailLength {
		return &ValidationError{Field: "email", Message: "is too long"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &ValidationError{Field: "email", Message: "must be a valid email address"}
	}
	return nil
}

func validateUsername(username string) error {
	if username == "" {
		return &ValidationError{Field: "username", Message: "is required"}
	}
	if len(username) > maxUsernameLength {
		return &ValidationError{Field: "username", Message: "must be at most 30 characters"}
	}
	for _, r := range username {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return &ValidationError{Field: "username", Message: "must not contain whitespace"}
		}
	}
	return nil
}

func validatePassword(field, password string) error {
	if password == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	if len(password) > maxPasswordLength {
		return &ValidationError{Field: field, Message: "is too long"}
	}
	return nil
}
