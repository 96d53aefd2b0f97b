// Package cache stores serialized extraction results in Redis keyed by
// document content hash and recognizer model version.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "contracts:extract:"

// DefaultTTL applies when New is given a non-positive ttl.
const DefaultTTL = 24 * time.Hour

// Open parses url, connects and pings. An empty url means caching is disabled
// and returns a nil client.
func Open(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Key builds the cache key for a document hash and model version.
func Key(contentHash, model string) string {
	return keyPrefix + contentHash + ":" + model
}

// ResultCache is a Redis-backed result store. A nil *ResultCache always misses.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func New(client *redis.Client, ttl time.Duration, logger *slog.Logger) *ResultCache {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResultCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached value and whether it was present.
func (c *ResultCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	c.logger.Debug("cache.hit", "key", key, "bytes", len(b))
	return b, true, nil
}

// Set stores value under key with the configured TTL.
func (c *ResultCache) Set(ctx context.Context, key string, value []byte) error {
	if c == nil {
		return nil
	}
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Health pings Redis.
func (c *ResultCache) Health(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}
