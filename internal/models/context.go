package models

import (
	"context"
)

type contextKey string

const userContextKey contextKey = "identity"

// SetUserContext returns a copy of ctx carrying the resolved identity.
// A nil user leaves ctx unchanged.
func SetUserContext(ctx context.Context, user *PublicUser) context.Context {
	if user == nil {
		return ctx
	}
	return context.WithValue(ctx, userContextKey, user)
}

// GetUserFromContext returns the identity attached by the auth middleware, or nil
func GetUserFromContext(ctx context.Context) *PublicUser {
	if ctx == nil {
		return nil
	}
	user, _ := ctx.Value(userContextKey).(*PublicUser)
	return user
}
