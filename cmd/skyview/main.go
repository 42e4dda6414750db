package main

import (
	"context"
	"fmt"
	"image/png"
	"log"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/skycanvas/internal/adapters/geolocation"
	"github.com/samirrijal/skycanvas/internal/adapters/notify"
	"github.com/samirrijal/skycanvas/internal/adapters/orientation"
	"github.com/samirrijal/skycanvas/internal/adapters/scene"
	"github.com/samirrijal/skycanvas/internal/adapters/tilehttp"
	"github.com/samirrijal/skycanvas/internal/core/ports"
	"github.com/samirrijal/skycanvas/internal/core/usecases"
	"github.com/samirrijal/skycanvas/internal/pkg/config"
	"github.com/samirrijal/skycanvas/internal/pkg/logging"
	"github.com/samirrijal/skycanvas/internal/pkg/metrics"
)

// skyview runs the sky viewer headless: the grid, location tracking and
// the render loop drive an in-memory scene. Pass a file name to write a
// top-down snapshot of the sky plane on exit.
func main() {
	cfg, err := config.Load("skycanvas-skyview")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Telemetry.ServiceName, "text")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tile textures
	fetcher := tilehttp.New(&http.Client{Timeout: cfg.Tiles.FetchTimeout()}, tilehttp.Config{
		BaseURL:    cfg.Tiles.BaseURL,
		Resolution: cfg.Tiles.Resolution,
		Retries:    cfg.Tiles.Retries,
		UserAgent:  "skycanvas-skyview",
	}, slog.Default())

	var textures ports.TileFetcher = fetcher
	if cfg.Tiles.TextureTTL > 0 {
		textures = tilehttp.NewCachedFetcher(fetcher, cfg.Tiles.TextureCache, time.Duration(cfg.Tiles.TextureTTL)*time.Second)
	}

	sc := scene.New()

	grid := usecases.NewTileGridManager(textures, sc, usecases.GridConfig{
		Zoom:         cfg.Tiles.Zoom,
		TileSize:     float64(cfg.Tiles.Size),
		Height:       cfg.Sky.Height,
		Opacity:      cfg.Sky.Opacity,
		Fade:         cfg.Sky.Fade(),
		FetchTimeout: cfg.Tiles.FetchTimeout(),
	}, slog.Default())

	// Location
	var locator ports.Locator = geolocation.Unavailable{}
	if cfg.Location.GPXFile != "" {
		gpxLocator, err := geolocation.LoadGPX(cfg.Location.GPXFile)
		if err != nil {
			log.Fatalf("gpx: %v", err)
		}
		slog.Info("replaying gpx track", "file", cfg.Location.GPXFile, "points", gpxLocator.Len())
		locator = gpxLocator
	}

	notifier := notify.NewLog(slog.Default())
	tracker := usecases.NewLocationTracker(locator, grid, notifier, usecases.TrackerConfig{
		PollInterval:      time.Duration(cfg.Location.PollInterval) * time.Second,
		MovementThreshold: cfg.Location.MovementThreshold,
		Fallback:          cfg.Location.Fallback(),
		Options:           cfg.Location.Options(),
	}, slog.Default())

	// Orientation
	var (
		source   ports.OrientationSource
		filter   *usecases.OrientationFilter
		fallback *usecases.MouseLook
	)
	look := usecases.NewMouseLook(0)
	look.Set(0, math.Pi/3)
	switch cfg.Orientation.Mode {
	case "mouse":
		source = look
	default:
		sensor := &orientation.Latest{}
		if cfg.Orientation.Sensor == "sweep" {
			go sensor.Feed(ctx, &orientation.Sweep{RadPerSec: 0.2, Pitch: math.Pi / 3, Jitter: 0.01}, cfg.Orientation.SensorRate)
		}
		source, fallback = sensor, look
		filter = usecases.NewOrientationFilter(usecases.FilterConfig{
			SlowTau: cfg.Orientation.SlowTau,
			BaseTau: cfg.Orientation.BaseTau,
			Window:  cfg.Orientation.Window,
			MinDt:   cfg.Orientation.MinDt,
		})
	}

	loop := usecases.NewRenderLoop(sc, sc, source, filter, cfg.Render.FPS, slog.Default())
	if fallback != nil {
		loop.WithFallback(fallback, notifier, cfg.Orientation.FallbackGrace())
	}

	session := usecases.NewSession(grid, tracker, loop, slog.Default())
	if err := session.Start(ctx); err != nil {
		log.Fatalf("session: %v", err)
	}
	g := grid.Grid()
	slog.Info("sky grid ready", "center", g.Center, "bounds", g.Bounds)

	// Metrics
	var metricsApp *fiber.App
	if cfg.Server.MetricsPort > 0 {
		metricsApp = fiber.New(fiber.Config{DisableStartupMessage: true})
		metricsApp.Get("/metrics", metrics.Handler())
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
			slog.Info("metrics server starting", "addr", addr)
			if err := metricsApp.Listen(addr); err != nil {
				slog.Error("metrics server", "error", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received", "signal", sig.String())

	// The grid is released on close, so snapshot first.
	if len(os.Args) > 1 {
		if err := writeSnapshot(os.Args[1], sc, 3*float64(cfg.Tiles.Size)); err != nil {
			slog.Error("snapshot", "error", err)
		}
	}

	stats := sc.Stats()
	session.Close()
	slog.Info("viewer stopped", "frames", loop.Frames(), "visible_planes", stats.Visible, "mode", tracker.Mode().String(), "mouse_fallback", loop.Degraded())

	if metricsApp != nil {
		_ = metricsApp.ShutdownWithTimeout(5 * time.Second)
	}
}

func writeSnapshot(path string, sc *scene.Scene, extent float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := png.Encode(f, sc.Snapshot(768, extent)); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	slog.Info("snapshot written", "file", path)
	return nil
}
