package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/samirrijal/skycanvas/internal/core/domain"
	"github.com/samirrijal/skycanvas/internal/core/ports"
	"github.com/samirrijal/skycanvas/internal/pkg/metrics"
	"github.com/samirrijal/skycanvas/internal/pkg/telemetry"
)

// CacheState tells a client where a proxied tile came from.
type CacheState string

const (
	CacheHit   CacheState = "HIT"
	CacheStale CacheState = "STALE"
	CacheMiss  CacheState = "MISS"
)

// ProxyConfig holds the tile proxy's cache windows.
type ProxyConfig struct {
	Fresh       time.Duration
	Stale       time.Duration
	NotFoundTTL time.Duration
	// OriginTimeout bounds one shared origin request; 15s when unset.
	OriginTimeout time.Duration
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// CachedTile is the cache entry for one tile.
type CachedTile struct {
	FetchedAt   time.Time `json:"fetched_at"`
	Status      int       `json:"status"`
	ContentType string    `json:"content_type"`
	Body        []byte    `json:"body"`
}

// TileResult is a tile as served to a client.
type TileResult struct {
	CachedTile
	State CacheState
}

// NotFound reports whether the origin has no content for the tile.
func (r *TileResult) NotFound() bool { return r.Status == http.StatusNotFound }

// TileCacheKey is the shared cache key of a canvas tile.
func TileCacheKey(t domain.TileIndex) string {
	return fmt.Sprintf("tiles:s0:%d:%d", t.X, t.Y)
}

// TileProxyService serves canvas tiles from a shared cache and refreshes
// them from the origin with stale-while-revalidate semantics.
type TileProxyService struct {
	cache  ports.CacheService
	origin ports.TileOrigin
	cfg    ProxyConfig
	log    *slog.Logger

	group singleflight.Group
	wg    sync.WaitGroup
}

// NewTileProxyService creates a proxy. cache may be nil, in which case
// every request goes to the origin.
func NewTileProxyService(cache ports.CacheService, origin ports.TileOrigin, cfg ProxyConfig, log *slog.Logger) *TileProxyService {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NotFoundTTL <= 0 {
		cfg.NotFoundTTL = cfg.Fresh
	}
	if cfg.OriginTimeout <= 0 {
		cfg.OriginTimeout = 15 * time.Second
	}
	return &TileProxyService{
		cache:  cache,
		origin: origin,
		cfg:    cfg,
		log:    log.With("component", "tileproxy"),
	}
}

// GetTile returns the tile from cache when it is fresh, serves a stale
// copy while refreshing it in the background, and otherwise fetches it
// from the origin. Origin failures fall back to a stale copy if there
// is one.
func (s *TileProxyService) GetTile(ctx context.Context, tile domain.TileIndex) (*TileResult, error) {
	if !tile.Valid() {
		return nil, fmt.Errorf("tile %s outside zoom %d grid: %w", tile, tile.Zoom, domain.ErrInvalidInput)
	}

	key := TileCacheKey(tile)
	entry := s.lookup(ctx, key)

	if entry != nil {
		age := s.cfg.Now().Sub(entry.FetchedAt)
		switch {
		case age < s.freshFor(entry):
			metrics.ProxyCacheResults.WithLabelValues(string(CacheHit)).Inc()
			return &TileResult{CachedTile: *entry, State: CacheHit}, nil
		case entry.Status == http.StatusOK && age < s.cfg.Fresh+s.cfg.Stale:
			s.revalidate(tile)
			metrics.ProxyCacheResults.WithLabelValues(string(CacheStale)).Inc()
			return &TileResult{CachedTile: *entry, State: CacheStale}, nil
		}
	}

	fresh, err := s.refresh(ctx, tile)
	if err != nil {
		if entry != nil && entry.Status == http.StatusOK {
			s.log.Warn("origin failed, serving stale tile", "tile", key, "error", err)
			metrics.ProxyCacheResults.WithLabelValues(string(CacheStale)).Inc()
			return &TileResult{CachedTile: *entry, State: CacheStale}, nil
		}
		metrics.ProxyCacheResults.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.ProxyCacheResults.WithLabelValues(string(CacheMiss)).Inc()
	return &TileResult{CachedTile: *fresh, State: CacheMiss}, nil
}

// Wait blocks until background revalidations have finished.
func (s *TileProxyService) Wait() {
	s.wg.Wait()
}

func (s *TileProxyService) freshFor(e *CachedTile) time.Duration {
	if e.Status == http.StatusNotFound {
		return s.cfg.NotFoundTTL
	}
	return s.cfg.Fresh
}

func (s *TileProxyService) lookup(ctx context.Context, key string) *CachedTile {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.log.Warn("cache read failed", "key", key, "error", err)
		}
		return nil
	}
	var e CachedTile
	if err := json.Unmarshal(data, &e); err != nil {
		s.log.Warn("corrupt cache entry", "key", key, "error", err)
		return nil
	}
	return &e
}

func (s *TileProxyService) revalidate(tile domain.TileIndex) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.OriginTimeout)
		defer cancel()

		ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanRevalidate)
		span.SetAttributes(
			attribute.Int(telemetry.AttrTileX, tile.X),
			attribute.Int(telemetry.AttrTileY, tile.Y),
		)
		defer span.End()

		if _, err := s.refresh(ctx, tile); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.log.Warn("tile revalidation failed", "tile", TileCacheKey(tile), "error", err)
		}
	}()
}

// refresh fetches the tile from the origin and stores it. Concurrent
// refreshes of the same tile share one origin request, which is detached
// from any single caller: a client going away returns early but does not
// fail the others waiting on it.
func (s *TileProxyService) refresh(ctx context.Context, tile domain.TileIndex) (*CachedTile, error) {
	key := TileCacheKey(tile)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.OriginTimeout)
		defer cancel()

		up, err := s.origin.FetchTile(ctx, tile)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", key, err)
		}

		switch up.Status {
		case http.StatusOK, http.StatusNotFound:
		default:
			return nil, fmt.Errorf("fetch %s: status %d: %w", key, up.Status, domain.ErrUpstream)
		}

		e := &CachedTile{
			FetchedAt:   s.cfg.Now(),
			Status:      up.Status,
			ContentType: up.ContentType,
			Body:        up.Body,
		}
		s.store(ctx, key, e)
		return e, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*CachedTile), nil
	}
}

func (s *TileProxyService) store(ctx context.Context, key string, e *CachedTile) {
	if s.cache == nil {
		return
	}
	ttl := s.cfg.Fresh + s.cfg.Stale
	if e.Status == http.StatusNotFound {
		ttl = s.cfg.NotFoundTTL
	}
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, int(math.Ceil(ttl.Seconds()))); err != nil {
		s.log.Warn("cache write failed", "key", key, "error", err)
	}
}
