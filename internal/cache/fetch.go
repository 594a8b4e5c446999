package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// getter is the read/write subset both backends share
type getter[T any] interface {
	Get(ctx context.Context, key string) (T, error)
	Set(ctx context.Context, key string, value T, ttl time.Duration) error
}

// getWithFetch implements cache-aside on top of c. Concurrent misses for the
// same key share a single fetchFunc call through group.
func getWithFetch[T any](
	ctx context.Context,
	c getter[T],
	group *singleflight.Group,
	key string,
	ttl time.Duration,
	fetchFunc func(ctx context.Context, key string) (T, error),
) (T, error) {
	if value, err := c.Get(ctx, key); err == nil {
		return value, nil
	}

	v, err, _ := group.Do(key, func() (any, error) {
		value, err := fetchFunc(ctx, key)
		if err != nil {
			return nil, err
		}
		_ = c.Set(ctx, key, value, ttl)
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
