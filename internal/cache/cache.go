package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of redis.Client the cache uses (for testing).
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

const keyPrefix = "price_check:"

// ResponseCache stores serialized price-check responses in Redis under
// normalized query keys with a fixed TTL. Cache failures are logged and
// treated as misses; the cache is an accelerator, not a dependency.
type ResponseCache struct {
	redis  RedisClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewResponseCache(client RedisClient, ttl time.Duration, logger *slog.Logger) *ResponseCache {
	return &ResponseCache{
		redis:  client,
		ttl:    ttl,
		logger: logger.With("component", "response_cache"),
	}
}

// Get returns the cached payload for query, or found=false on a miss.
func (c *ResponseCache) Get(ctx context.Context, query string) ([]byte, bool) {
	data, err := c.redis.Get(ctx, keyPrefix+NormalizeQuery(query)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Error("cache read failed", "error", err)
		}
		return nil, false
	}
	return data, true
}

// Set stores payload for query; errors are logged, not surfaced.
func (c *ResponseCache) Set(ctx context.Context, query string, payload []byte) {
	if err := c.redis.Set(ctx, keyPrefix+NormalizeQuery(query), payload, c.ttl).Err(); err != nil {
		c.logger.Error("cache write failed", "error", err)
	}
}

// NormalizeQuery collapses whitespace and lowercases a search query so
// trivially different spellings share one cache entry.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}
