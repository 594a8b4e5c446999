package token

import (
	"context"
	"fmt"
	"time"

	"github.com/cockpit-trainer/cockpit-api/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// LocalTokenProvider generates and validates HS256 JWTs locally
type LocalTokenProvider struct {
	config *config.Config
}

// NewLocalTokenProvider creates a new local token provider
func NewLocalTokenProvider(cfg *config.Config) *LocalTokenProvider {
	return &LocalTokenProvider{config: cfg}
}

// generateJWT creates a signed JWT carrying the subject and email
func (p *LocalTokenProvider) generateJWT(
	userID, email, tokenType, secret string,
	expiresAt time.Time,
) (string, error) {
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"typ":   tokenType,
		"exp":   expiresAt.Unix(),
		"iat":   time.Now().Unix(),
		"iss":   p.config.BaseURL,
		"jti":   uuid.New().String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}
	return tokenString, nil
}

// GenerateTokenPair mints an access token and a refresh token concurrently
func (p *LocalTokenProvider) GenerateTokenPair(
	ctx context.Context,
	userID, email string,
) (*Pair, error) {
	now := time.Now()
	pair := &Pair{
		AccessExpiresAt:  now.Add(p.config.AccessTokenExpiration),
		RefreshExpiresAt: now.Add(p.config.RefreshTokenExpiration),
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pair.AccessToken, err = p.generateJWT(
			userID, email, TokenTypeAccess, p.config.JWTSecret, pair.AccessExpiresAt,
		)
		return err
	})
	g.Go(func() error {
		var err error
		pair.RefreshToken, err = p.generateJWT(
			userID, email, TokenTypeRefresh, p.config.RefreshSecret(), pair.RefreshExpiresAt,
		)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return pair, nil
}

// ValidateAccessToken verifies an access token
func (p *LocalTokenProvider) ValidateAccessToken(
	ctx context.Context,
	tokenString string,
) (*Claims, error) {
	return p.validate(tokenString, TokenTypeAccess, p.config.JWTSecret)
}

// ValidateRefreshToken verifies a refresh token
func (p *LocalTokenProvider) ValidateRefreshToken(
	ctx context.Context,
	tokenString string,
) (*Claims, error) {
	return p.validate(tokenString, TokenTypeRefresh, p.config.RefreshSecret())
}

func (p *LocalTokenProvider) validate(tokenString, tokenType, secret string) (*Claims, error) {
	token, err := jwt.Parse(
		tokenString,
		func(token *jwt.Token) (any, error) {
			return []byte(secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(p.config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	// An access token must never pass as a refresh token and vice versa
	if typ, _ := claims["typ"].(string); typ != tokenType {
		return nil, fmt.Errorf("%w: unexpected token type", ErrInvalidToken)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	email, _ := claims["email"].(string)
	jti, _ := claims["jti"].(string)

	result := &Claims{
		ID:        jti,
		Subject:   sub,
		Email:     email,
		TokenType: tokenType,
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		result.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		result.IssuedAt = iat.Time
	}

	return result, nil
}
