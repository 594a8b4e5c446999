package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cockpit-trainer/cockpit-api/internal/core"
	"github.com/cockpit-trainer/cockpit-api/internal/models"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// payloadValidator is satisfied by *idtoken.Validator
type payloadValidator interface {
	Validate(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)
}

// GoogleVerifier validates Google ID tokens (signature, expiry and audience)
// and extracts the identity claims.
type GoogleVerifier struct {
	clientID  string
	validator payloadValidator
}

// NewGoogleVerifier creates a verifier that fetches Google's signing keys with httpClient
func NewGoogleVerifier(
	ctx context.Context,
	clientID string,
	httpClient *http.Client,
) (*GoogleVerifier, error) {
	var opts []option.ClientOption
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	validator, err := idtoken.NewValidator(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create id token validator: %w", err)
	}
	return &GoogleVerifier{clientID: clientID, validator: validator}, nil
}

// Name returns the provider name stored on linked users
func (v *GoogleVerifier) Name() string {
	return models.ProviderGoogle
}

// VerifyIDToken validates idToken against the configured client ID
func (v *GoogleVerifier) VerifyIDToken(
	ctx context.Context,
	idToken string,
) (*core.ExternalIdentity, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, ErrInvalidIDToken
	}

	payload, err := v.validator.Validate(ctx, idToken, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}
	if !googleIssuers[payload.Issuer] {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidIDToken, payload.Issuer)
	}
	if payload.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidIDToken)
	}

	identity := &core.ExternalIdentity{
		Subject:       payload.Subject,
		Email:         stringClaim(payload.Claims, "email"),
		EmailVerified: boolClaim(payload.Claims, "email_verified"),
		Name:          stringClaim(payload.Claims, "name"),
		Picture:       stringClaim(payload.Claims, "picture"),
	}

	if identity.Email == "" || !strings.Contains(identity.Email, "@") {
		return nil, fmt.Errorf("%w: missing email", ErrInvalidIDToken)
	}
	if !identity.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	return identity, nil
}

func stringClaim(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}

// boolClaim accepts both JSON booleans and the "true" strings some Google tokens carry
func boolClaim(claims map[string]any, key string) bool {
	switch v := claims[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}
