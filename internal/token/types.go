package token

import "github.com/cockpit-trainer/cockpit-api/internal/core"

// Token type constants carried in the "typ" claim
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Pair is an alias for core.TokenPair.
type Pair = core.TokenPair

// Claims is an alias for core.TokenClaims.
type Claims = core.TokenClaims
