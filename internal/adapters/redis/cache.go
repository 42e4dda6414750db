// Package redis is a ports.CacheService backed by go-redis, for
// deployments that already run a Redis server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/samirrijal/skycanvas/internal/core/domain"
)

// Cache implements ports.CacheService.
type Cache struct {
	client *goredis.Client
}

// New opens a client for addr.
func New(addr, password string, db int) *Cache {
	return &Cache{client: goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})}
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client) *Cache {
	return &Cache{client: client}
}

// Get retrieves a value by key. Absent keys return domain.ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, domain.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

// Set stores a value with a TTL in seconds; 0 means no expiry.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	if err := c.client.Set(ctx, key, value, time.Duration(max(0, ttlSeconds))*time.Second).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// Ping checks the connection for the readiness check.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client.
func (c *Cache) Close() {
	_ = c.client.Close()
}
