package core

import (
	"context"
	"time"
)

// TokenPair is an access token and the refresh token minted alongside it.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// TokenClaims is the verified payload of a signed token.
type TokenClaims struct {
	ID        string
	Subject   string
	Email     string
	TokenType string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenProvider signs and verifies the bearer tokens handed to clients.
type TokenProvider interface {
	GenerateTokenPair(ctx context.Context, userID, email string) (*TokenPair, error)
	ValidateAccessToken(ctx context.Context, tokenString string) (*TokenClaims, error)
	ValidateRefreshToken(ctx context.Context, tokenString string) (*TokenClaims, error)
}
