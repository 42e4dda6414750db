package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/skycanvas/internal/adapters/http"
	"github.com/samirrijal/skycanvas/internal/adapters/redis"
	"github.com/samirrijal/skycanvas/internal/adapters/upstream"
	"github.com/samirrijal/skycanvas/internal/adapters/valkey"
	"github.com/samirrijal/skycanvas/internal/core/ports"
	"github.com/samirrijal/skycanvas/internal/core/usecases"
	"github.com/samirrijal/skycanvas/internal/pkg/config"
	"github.com/samirrijal/skycanvas/internal/pkg/logging"
	"github.com/samirrijal/skycanvas/internal/pkg/telemetry"
)

type sharedCache interface {
	ports.CacheService
	http.Pinger
	Close()
}

func main() {
	cfg, err := config.Load("skycanvas-tileproxy")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Telemetry.ServiceName, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Shared tile cache
	var cache sharedCache
	switch cfg.Cache.Driver {
	case "valkey":
		c, err := valkey.New(cfg.Cache.Addr)
		if err != nil {
			slog.Warn("valkey unavailable, serving without cache", "error", err)
		} else {
			cache = c
		}
	case "redis":
		cache = redis.New(cfg.Cache.Addr, os.Getenv("REDIS_PASSWORD"), 0)
	}
	if cache != nil {
		defer cache.Close()
	}

	proxyCfg := usecases.ProxyConfig{
		Fresh:         time.Duration(cfg.Proxy.FreshSeconds) * time.Second,
		Stale:         time.Duration(cfg.Proxy.StaleSeconds) * time.Second,
		NotFoundTTL:   time.Duration(cfg.Proxy.NotFoundTTL) * time.Second,
		OriginTimeout: cfg.Tiles.FetchTimeout(),
	}

	origin := upstream.New(cfg.Proxy.Upstream, cfg.Tiles.FetchTimeout())

	// A nil interface, not a typed nil, when no cache is configured.
	var store ports.CacheService
	var pinger http.Pinger
	if cache != nil {
		store, pinger = cache, cache
	}
	tiles := usecases.NewTileProxyService(store, origin, proxyCfg, slog.Default())

	deps := &http.Dependencies{
		Tiles: tiles,
		Cache: pinger,
		Zoom:  cfg.Tiles.Zoom,
		Fresh: proxyCfg.Fresh,
		Stale: proxyCfg.Stale,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024, // GET-only surface
		AppName:      "SkyCanvas Tile Proxy",
	})
	app.Use(recover.New())

	http.SetupRoutes(app, deps, http.RouteConfig{
		RateLimit:      600,
		RequestTimeout: cfg.Tiles.FetchTimeout() + 2*time.Second,
	})

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("tile proxy starting", "addr", addr, "upstream", cfg.Proxy.Upstream, "cache", cfg.Cache.Driver)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	// Let in-flight revalidations land in the cache before closing it.
	tiles.Wait()

	slog.Info("server stopped")
}
