// Package cache keeps issued quotes in Redis until they expire.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/iwvelando/premium-engine/internal/quote"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix prefixes every quote key.
const KeyPrefix = "quote:"

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to reach redis at %s, %w", addr, err)
	}
	return client, nil
}

// RedisCache implements quote.Cache.
type RedisCache struct {
	client redis.Cmdable
}

// NewRedisCache returns a cache over client.
func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

// Key returns the Redis key of a quote reference.
func Key(reference string) string {
	return KeyPrefix + reference
}

// Put implements quote.Cache.
func (c *RedisCache) Put(ctx context.Context, q *quote.Quote, ttl time.Duration) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("unable to encode quote %s, %w", q.Reference, err)
	}
	return c.client.Set(ctx, Key(q.Reference), data, ttl).Err()
}

// Get implements quote.Cache.
func (c *RedisCache) Get(ctx context.Context, reference string) (*quote.Quote, error) {
	data, err := c.client.Get(ctx, Key(reference)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, quote.NotFound(reference)
	}
	if err != nil {
		return nil, err
	}
	var q quote.Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("unable to decode cached quote %s, %w", reference, err)
	}
	return &q, nil
}
