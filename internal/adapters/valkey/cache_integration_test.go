//go:build integration
// +build integration

package valkey_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/samirrijal/skycanvas/internal/adapters/valkey"
	"github.com/samirrijal/skycanvas/internal/core/domain"
)

func setupCache(t *testing.T) *valkey.Cache {
	addr := os.Getenv("SKYCANVAS_CACHE_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	c, err := valkey.New(addr)
	if err != nil {
		t.Fatalf("connect valkey: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestCache_RoundTrip(t *testing.T) {
	c := setupCache(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	key := "tiles:s0:test:" + time.Now().Format("150405.000000")
	body := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff}

	if _, err := c.Get(ctx, key); !errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
	if err := c.Set(ctx, key, body, 30); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != string(body) {
		t.Errorf("binary value not preserved: %v", got)
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Get(ctx, key); !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss after delete, got %v", err)
	}
}
