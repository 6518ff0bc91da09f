package geo

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"nordflytt_backend/platform/logger"
)

// CachedResolver wraps a Resolver with a redis read-through cache. The cache
// is strictly best-effort: a cache failure degrades to the inner resolver and
// never fails a distance lookup on its own.
type CachedResolver struct {
	inner Resolver
	redis *redis.Client
	ttl   time.Duration
	log   *logger.Logger
}

// NewCachedResolver wraps inner with a redis cache.
func NewCachedResolver(inner Resolver, client *redis.Client, ttl time.Duration, log *logger.Logger) *CachedResolver {
	return &CachedResolver{inner: inner, redis: client, ttl: ttl, log: log}
}

var _ Resolver = (*CachedResolver)(nil)

// Distance returns a cached distance when present, resolving and storing otherwise.
func (c *CachedResolver) Distance(ctx context.Context, origin, destination string) (float64, error) {
	key := cacheKey(origin, destination)

	cached, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		if km, parseErr := strconv.ParseFloat(cached, 64); parseErr == nil {
			return km, nil
		}
		// A corrupt entry is replaced by a fresh resolve below.
		c.log.Warn("corrupt distance cache entry", "key", key, "value", cached)
	} else if err != redis.Nil {
		c.log.Warn("distance cache read failed", "error", err)
	}

	km, err := c.inner.Distance(ctx, origin, destination)
	if err != nil {
		return 0, err
	}

	value := strconv.FormatFloat(km, 'f', -1, 64)
	if err := c.redis.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.log.Warn("distance cache write failed", "error", err)
	}

	return km, nil
}

func cacheKey(origin, destination string) string {
	normalize := func(s string) string {
		return strings.ToLower(strings.Join(strings.Fields(s), " "))
	}
	return fmt.Sprintf("distance:%s|%s", normalize(origin), normalize(destination))
}
