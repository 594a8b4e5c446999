package bootstrap

import (
	"context"
	"fmt"

	"github.com/cockpit-trainer/cockpit-api/internal/cache"
	"github.com/cockpit-trainer/cockpit-api/internal/config"
	"github.com/cockpit-trainer/cockpit-api/internal/core"
	"github.com/cockpit-trainer/cockpit-api/internal/metrics"

	"github.com/rs/zerolog/log"
)

const metricsCachePrefix = "cockpit:metrics:"

// initializeMetrics initializes Prometheus metrics
func initializeMetrics(cfg *config.Config) metrics.Recorder {
	recorder := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		log.Info().Msg("Prometheus metrics initialized")
	} else {
		log.Info().Msg("Metrics disabled (using noop implementation)")
	}
	return recorder
}

// initializeMetricsCache initializes the gauge count cache based on configuration.
// Returns nil when gauges are not refreshed.
func initializeMetricsCache(
	ctx context.Context,
	cfg *config.Config,
) (core.Cache[int64], func() error, error) {
	if !cfg.MetricsEnabled || !cfg.MetricsGaugeUpdateEnabled {
		return nil, nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.CacheInitTimeout)
	defer cancel()

	switch cfg.MetricsCacheType {
	case config.MetricsCacheTypeRedis:
		c, err := cache.NewRueidisCache[int64](
			ctx,
			cfg.RedisAddr,
			cfg.RedisPassword,
			cfg.RedisDB,
			metricsCachePrefix,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize redis metrics cache: %w", err)
		}
		log.Info().
			Str("addr", cfg.RedisAddr).
			Int("db", cfg.RedisDB).
			Msg("Metrics cache: redis")
		return c, c.Close, nil

	default: // memory
		c := cache.NewMemoryCache[int64]()
		log.Info().Msg("Metrics cache: memory (single instance only)")
		return c, c.Close, nil
	}
}
