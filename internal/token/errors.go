package token

import "errors"

var (
	// ErrTokenGeneration indicates token generation failed
	ErrTokenGeneration = errors.New("failed to generate token")

	// ErrInvalidToken covers every verification failure: bad signature,
	// expiry, wrong token type or malformed claims.
	ErrInvalidToken = errors.New("invalid token")
)
