package auth

import "errors"

var (
	// ErrMalformedHash is returned when a stored hash is not an argon2id PHC string
	ErrMalformedHash = errors.New("malformed password hash")

	// ErrIncompatibleVersion is returned for hashes produced by another argon2 version
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")

	// External identity errors
	ErrInvalidIDToken   = errors.New("invalid id token")
	ErrEmailNotVerified = errors.New("email not verified by provider")
	ErrMissingIDToken   = errors.New("token response has no id_token")
)
