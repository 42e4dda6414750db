package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/skycanvas/internal/adapters/http"
	"github.com/samirrijal/skycanvas/internal/core/domain"
	"github.com/samirrijal/skycanvas/internal/core/ports"
	"github.com/samirrijal/skycanvas/internal/core/usecases"
)

// ---- Mocks ----

type mockOrigin struct {
	fetchFn func(ctx context.Context, tile domain.TileIndex) (*ports.UpstreamTile, error)
	calls   atomic.Int64
}

func (m *mockOrigin) FetchTile(ctx context.Context, tile domain.TileIndex) (*ports.UpstreamTile, error) {
	m.calls.Add(1)
	if m.fetchFn != nil {
		return m.fetchFn(ctx, tile)
	}
	return &ports.UpstreamTile{Status: 200, ContentType: "image/png", Body: []byte("\x89PNG-tile")}, nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *memCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(ctx context.Context, key string) error { return nil }

type mockPinger struct{ err error }

func (m mockPinger) Ping(ctx context.Context) error { return m.err }

// ---- Helpers ----

func setupApp(origin ports.TileOrigin, cache handler.Pinger) *fiber.App {
	cfg := usecases.ProxyConfig{Fresh: 30 * time.Second, Stale: 600 * time.Second, NotFoundTTL: time.Minute}
	svc := usecases.NewTileProxyService(&memCache{data: map[string][]byte{}}, origin, cfg, nil)

	app := fiber.New()
	handler.SetupRoutes(app, &handler.Dependencies{
		Tiles: svc,
		Cache: cache,
		Zoom:  11,
		Fresh: cfg.Fresh,
		Stale: cfg.Stale,
	}, handler.RouteConfig{})
	return app
}

func doGet(t *testing.T, app *fiber.App, path string, headers map[string]string) (int, []byte, map[string]string) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	out := map[string]string{}
	for k := range resp.Header {
		out[k] = resp.Header.Get(k)
	}
	return resp.StatusCode, body, out
}

// ---- Tests ----

func TestTileHandler_MissThenHit(t *testing.T) {
	origin := &mockOrigin{}
	app := setupApp(origin, nil)

	status, body, h := doGet(t, app, "/files/s0/tiles/572/747.png?t=1700000000000", nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	if string(body) != "\x89PNG-tile" {
		t.Errorf("unexpected body %q", body)
	}
	if h["X-Cache"] != "MISS" {
		t.Errorf("expected X-Cache MISS, got %q", h["X-Cache"])
	}
	if h["Content-Type"] != "image/png" {
		t.Errorf("expected image/png, got %q", h["Content-Type"])
	}
	if h["Cache-Control"] != "public, max-age=30, stale-while-revalidate=600" {
		t.Errorf("unexpected Cache-Control %q", h["Cache-Control"])
	}

	// A different cache buster hits the same entry.
	_, _, h = doGet(t, app, "/files/s0/tiles/572/747.png?t=1700000005000", nil)
	if h["X-Cache"] != "HIT" {
		t.Errorf("expected X-Cache HIT, got %q", h["X-Cache"])
	}
	if origin.calls.Load() != 1 {
		t.Errorf("expected 1 origin call, got %d", origin.calls.Load())
	}
}

func TestTileHandler_ETag(t *testing.T) {
	app := setupApp(&mockOrigin{}, nil)

	_, _, h := doGet(t, app, "/files/s0/tiles/1/2.png", nil)
	etag := h["Etag"]
	if etag == "" {
		t.Fatal("expected an ETag")
	}

	status, body, _ := doGet(t, app, "/files/s0/tiles/1/2.png", map[string]string{"If-None-Match": etag})
	if status != 304 || len(body) != 0 {
		t.Errorf("expected empty 304, got %d with %d bytes", status, len(body))
	}
}

func TestTileHandler_NotFound(t *testing.T) {
	origin := &mockOrigin{fetchFn: func(ctx context.Context, tile domain.TileIndex) (*ports.UpstreamTile, error) {
		return &ports.UpstreamTile{Status: 404}, nil
	}}
	app := setupApp(origin, nil)

	status, body, h := doGet(t, app, "/files/s0/tiles/5/6.png", nil)
	if status != 404 {
		t.Fatalf("expected 404, got %d", status)
	}
	var apiErr handler.APIError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		t.Fatalf("expected JSON error body: %v", err)
	}
	if apiErr.Code != "not_found" {
		t.Errorf("expected not_found, got %s", apiErr.Code)
	}
	if h["X-Cache"] != "MISS" {
		t.Errorf("expected X-Cache MISS, got %q", h["X-Cache"])
	}

	_, _, h = doGet(t, app, "/files/s0/tiles/5/6.png", nil)
	if h["X-Cache"] != "HIT" || origin.calls.Load() != 1 {
		t.Errorf("expected cached 404, got %q after %d calls", h["X-Cache"], origin.calls.Load())
	}
}

func TestTileHandler_BadRequests(t *testing.T) {
	app := setupApp(&mockOrigin{}, nil)

	tests := []struct {
		path   string
		status int
	}{
		{"/files/s0/tiles/abc/1.png", 400},
		{"/files/s0/tiles/1/abc.png", 400},
		{"/files/s0/tiles/-1/1.png", 400},
		{"/files/s0/tiles/2048/1.png", 400},
		{"/files/s0/tiles/1/2048.png", 400},
		{"/files/s0/tiles/1/1.jpg", 404},
	}
	for _, tt := range tests {
		status, _, _ := doGet(t, app, tt.path, nil)
		if status != tt.status {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.status, status)
		}
	}
}

func TestTileHandler_UpstreamError(t *testing.T) {
	origin := &mockOrigin{fetchFn: func(ctx context.Context, tile domain.TileIndex) (*ports.UpstreamTile, error) {
		return nil, errors.New("connection refused")
	}}
	app := setupApp(origin, nil)

	status, body, h := doGet(t, app, "/files/s0/tiles/1/1.png", nil)
	if status != 502 {
		t.Fatalf("expected 502, got %d", status)
	}
	var apiErr handler.APIError
	_ = json.Unmarshal(body, &apiErr)
	if apiErr.Code != "bad_gateway" {
		t.Errorf("expected bad_gateway, got %s", apiErr.Code)
	}
	if h["Cache-Control"] != "no-store" {
		t.Errorf("expected errors to be uncacheable, got %q", h["Cache-Control"])
	}
}

func TestHealthHandler(t *testing.T) {
	app := setupApp(&mockOrigin{}, nil)

	status, body, h := doGet(t, app, "/v1/health", nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var resp map[string]any
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", resp["status"])
	}
	if h["Cache-Control"] != "public, max-age=10" {
		t.Errorf("unexpected Cache-Control %q", h["Cache-Control"])
	}
}

func TestReadyHandler(t *testing.T) {
	tests := []struct {
		name   string
		cache  handler.Pinger
		status int
		check  string
	}{
		{"no cache", nil, 200, "not configured"},
		{"cache ok", mockPinger{}, 200, "ok"},
		{"cache down", mockPinger{err: errors.New("dial tcp: refused")}, 503, "error: dial tcp: refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupApp(&mockOrigin{}, tt.cache)
			status, body, _ := doGet(t, app, "/v1/ready", nil)
			if status != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, status)
			}
			var resp struct {
				Checks map[string]string `json:"checks"`
			}
			_ = json.Unmarshal(body, &resp)
			if resp.Checks["cache"] != tt.check {
				t.Errorf("expected cache check %q, got %q", tt.check, resp.Checks["cache"])
			}
		})
	}
}

func TestRequestIDHeader(t *testing.T) {
	app := setupApp(&mockOrigin{}, nil)
	_, _, h := doGet(t, app, "/v1/health", nil)
	if h["X-Request-Id"] == "" {
		t.Error("expected X-Request-ID header")
	}
}
