package tilehttp_test

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samirrijal/skycanvas/internal/adapters/tilehttp"
	"github.com/samirrijal/skycanvas/internal/core/domain"
)

type countingFetcher struct {
	calls atomic.Int64
	err   error
}

func (c *countingFetcher) Fetch(ctx context.Context, tile domain.TileIndex) (image.Image, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

func TestCachedFetcher(t *testing.T) {
	next := &countingFetcher{}
	c := tilehttp.NewCachedFetcher(next, 2, time.Minute)
	ctx := context.Background()

	a := domain.TileIndex{X: 1, Y: 1, Zoom: 11}
	b := domain.TileIndex{X: 2, Y: 1, Zoom: 11}
	d := domain.TileIndex{X: 3, Y: 1, Zoom: 11}

	for _, tl := range []domain.TileIndex{a, a, b, a} {
		if _, err := c.Fetch(ctx, tl); err != nil {
			t.Fatal(err)
		}
	}
	if next.calls.Load() != 2 {
		t.Fatalf("expected 2 upstream fetches, got %d", next.calls.Load())
	}

	// d evicts b, the least recently used.
	_, _ = c.Fetch(ctx, d)
	_, _ = c.Fetch(ctx, a)
	if next.calls.Load() != 3 {
		t.Errorf("expected a to stay cached, got %d fetches", next.calls.Load())
	}
	_, _ = c.Fetch(ctx, b)
	if next.calls.Load() != 4 {
		t.Errorf("expected b to be refetched, got %d fetches", next.calls.Load())
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", c.Len())
	}
}

func TestCachedFetcher_ErrorsAreNotCached(t *testing.T) {
	next := &countingFetcher{err: domain.ErrTileNotFound}
	c := tilehttp.NewCachedFetcher(next, 4, time.Minute)
	tl := domain.TileIndex{X: 1, Y: 1, Zoom: 11}

	for i := 0; i < 2; i++ {
		if _, err := c.Fetch(context.Background(), tl); !errors.Is(err, domain.ErrTileNotFound) {
			t.Fatalf("expected ErrTileNotFound, got %v", err)
		}
	}
	if next.calls.Load() != 2 {
		t.Errorf("expected every failure to reach upstream, got %d", next.calls.Load())
	}
}

func TestCachedFetcher_Disabled(t *testing.T) {
	next := &countingFetcher{}
	c := tilehttp.NewCachedFetcher(next, 4, 0)
	tl := domain.TileIndex{X: 1, Y: 1, Zoom: 11}

	_, _ = c.Fetch(context.Background(), tl)
	_, _ = c.Fetch(context.Background(), tl)
	if next.calls.Load() != 2 {
		t.Errorf("expected caching disabled, got %d fetches", next.calls.Load())
	}
}
