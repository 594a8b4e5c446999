package core

import "context"

// ExternalIdentity is the verified subset of an external provider's ID token.
type ExternalIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// IDTokenVerifier validates an ID token issued by an external OAuth provider
// against this deployment's client ID.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*ExternalIdentity, error)
	Name() string
}

// PasswordHasher produces salted one-way hashes for passwords and refresh tokens.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	// Verify reports whether plaintext matches hashed. A malformed hash is an error.
	Verify(hashed, plaintext string) (bool, error)
}
