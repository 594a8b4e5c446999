package metrics

import (
	"context"
	"time"

	"github.com/cockpit-trainer/cockpit-api/internal/core"
)

const (
	cacheKeyUsersTotal     = "gauge:users_total"
	cacheKeySessionsActive = "gauge:sessions_active"
)

// CacheWrapper provides a read-through cache for gauge counts so several
// replicas sharing a Redis cache do not all run the same COUNT queries.
type CacheWrapper struct {
	store core.MetricsStore
	cache core.Cache[int64]
}

// NewCacheWrapper creates a new cache wrapper for metrics.
func NewCacheWrapper(store core.MetricsStore, cache core.Cache[int64]) *CacheWrapper {
	return &CacheWrapper{
		store: store,
		cache: cache,
	}
}

// GetUsersCount returns the number of accounts
func (w *CacheWrapper) GetUsersCount(ctx context.Context, ttl time.Duration) (int64, error) {
	return w.cache.GetWithFetch(ctx, cacheKeyUsersTotal, ttl,
		func(ctx context.Context, _ string) (int64, error) {
			return w.store.CountUsers(ctx)
		})
}

// GetActiveSessionsCount returns the number of users holding a refresh token
func (w *CacheWrapper) GetActiveSessionsCount(ctx context.Context, ttl time.Duration) (int64, error) {
	return w.cache.GetWithFetch(ctx, cacheKeySessionsActive, ttl,
		func(ctx context.Context, _ string) (int64, error) {
			return w.store.CountActiveSessions(ctx)
		})
}

// UpdateGauges refreshes every gauge from the cache or the database.
// Errors are counted per gauge and do not stop the others.
func UpdateGauges(ctx context.Context, recorder Recorder, wrapper *CacheWrapper, ttl time.Duration) {
	if users, err := wrapper.GetUsersCount(ctx, ttl); err != nil {
		recorder.RecordDatabaseQueryError("count_users")
	} else {
		recorder.SetUsersCount(int(users))
	}

	if sessions, err := wrapper.GetActiveSessionsCount(ctx, ttl); err != nil {
		recorder.RecordDatabaseQueryError("count_active_sessions")
	} else {
		recorder.SetActiveSessionsCount(int(sessions))
	}
}
