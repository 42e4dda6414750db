package redis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samirrijal/skycanvas/internal/adapters/redis"
	"github.com/samirrijal/skycanvas/internal/core/domain"
)

func TestCache_Unreachable(t *testing.T) {
	// Nothing listens on port 1; every call must fail without being
	// mistaken for a cache miss.
	c := redis.New("127.0.0.1:1", "", 0)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.Ping(ctx); err == nil {
		t.Fatal("expected ping to fail")
	}
	_, err := c.Get(ctx, "tiles:s0:1:1")
	if err == nil {
		t.Fatal("expected get to fail")
	}
	if errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("connection errors must not look like a miss: %v", err)
	}
	if err := c.Set(ctx, "tiles:s0:1:1", []byte("x"), 10); err == nil {
		t.Error("expected set to fail")
	}
}
