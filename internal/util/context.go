package util

import (
	"context"

	"github.com/gin-gonic/gin"
)

type contextKey string

const (
	ipContextKey        contextKey = "client_ip"
	userAgentContextKey contextKey = "user_agent"
	pathContextKey      contextKey = "request_path"
)

// RequestContextMiddleware copies the client IP, user agent and path into the
// request context so services can attribute audit events without gin.
func RequestContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := SetIPContext(c.Request.Context(), c.ClientIP())
		ctx = SetUserAgentContext(ctx, c.Request.UserAgent())
		ctx = context.WithValue(ctx, pathContextKey, c.Request.URL.Path)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// SetIPContext stores the client IP in ctx; an empty ip leaves ctx unchanged
func SetIPContext(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, ipContextKey, ip)
}

// GetIPFromContext extracts the client IP address from the context
func GetIPFromContext(ctx context.Context) string {
	if ginCtx, ok := ctx.(*gin.Context); ok {
		return ginCtx.ClientIP()
	}
	ip, _ := ctx.Value(ipContextKey).(string)
	return ip
}

func SetUserAgentContext(ctx context.Context, userAgent string) context.Context {
	if userAgent == "" {
		return ctx
	}
	return context.WithValue(ctx, userAgentContextKey, userAgent)
}

func GetUserAgentFromContext(ctx context.Context) string {
	ua, _ := ctx.Value(userAgentContextKey).(string)
	return ua
}

func GetRequestPathFromContext(ctx context.Context) string {
	path, _ := ctx.Value(pathContextKey).(string)
	return path
}
