package bootstrap

import (
	"fmt"

	"github.com/cockpit-trainer/cockpit-api/internal/config"
	"github.com/cockpit-trainer/cockpit-api/internal/middleware"
	"github.com/cockpit-trainer/cockpit-api/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// rateLimitMiddlewares holds rate limiting middlewares for different endpoints
type rateLimitMiddlewares struct {
	login    gin.HandlerFunc
	register gin.HandlerFunc
	refresh  gin.HandlerFunc
	google   gin.HandlerFunc
}

// setupRateLimiting configures rate limiting middlewares based on configuration.
// redisClient is only used by the redis store.
func setupRateLimiting(
	cfg *config.Config,
	auditService *services.AuditService,
	redisClient *redis.Client,
) (rateLimitMiddlewares, error) {
	if !cfg.EnableRateLimit {
		noOp := func(c *gin.Context) { c.Next() }
		log.Info().Msg("Rate limiting disabled")
		return rateLimitMiddlewares{login: noOp, register: noOp, refresh: noOp, google: noOp}, nil
	}
	return createRateLimiters(cfg, auditService, redisClient)
}

// createRateLimiters creates one limiter per endpoint so their counters stay separate
func createRateLimiters(
	cfg *config.Config,
	auditService *services.AuditService,
	redisClient *redis.Client,
) (rateLimitMiddlewares, error) {
	storeType := middleware.RateLimitStoreType(cfg.RateLimitStore)
	if storeType == middleware.RateLimitStoreRedis {
		log.Info().Msg("Rate limiting enabled (store: redis, shared across instances)")
	} else {
		log.Info().Msg("Rate limiting enabled (store: memory, single instance only)")
	}

	var firstErr error
	createLimiter := func(requestsPerMinute int, endpoint string) gin.HandlerFunc {
		limiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMinute: requestsPerMinute,
			StoreType:         storeType,
			RedisClient:       redisClient,
			Prefix:            "cockpit:ratelimit:" + endpoint,
			CleanupInterval:   cfg.RateLimitCleanupInterval,
			AuditService:      auditService,
		})
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to create rate limiter for %s: %w", endpoint, err)
		}
		return limiter
	}

	limiters := rateLimitMiddlewares{
		login:    createLimiter(cfg.LoginRateLimit, "login"),
		register: createLimiter(cfg.RegisterRateLimit, "registration"),
		refresh:  createLimiter(cfg.RefreshRateLimit, "refresh"),
		google:   createLimiter(cfg.GoogleLoginRateLimit, "google"),
	}
	if firstErr != nil {
		return rateLimitMiddlewares{}, firstErr
	}
	return limiters, nil
}
