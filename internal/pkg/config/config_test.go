package config_test

import (
	"strings"
	"testing"

	"github.com/samirrijal/skycanvas/internal/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("skycanvas-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Tiles.Zoom != 11 {
		t.Errorf("expected zoom 11, got %d", cfg.Tiles.Zoom)
	}
	if cfg.Tiles.Size != 1000 {
		t.Errorf("expected tile size 1000, got %d", cfg.Tiles.Size)
	}
	if cfg.Telemetry.ServiceName != "skycanvas-test" {
		t.Errorf("expected service name skycanvas-test, got %s", cfg.Telemetry.ServiceName)
	}
	if cfg.Tiles.FetchTimeout().Seconds() != 8 {
		t.Errorf("expected 8s fetch timeout, got %s", cfg.Tiles.FetchTimeout())
	}
	if cfg.Orientation.Sensor != "sweep" || cfg.Orientation.FallbackGrace().Seconds() != 3 {
		t.Errorf("unexpected orientation defaults %+v", cfg.Orientation)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SKYCANVAS_TILES_ZOOM", "9")
	t.Setenv("SKYCANVAS_ORIENTATION_MODE", "mouse")

	cfg, err := config.Load("skycanvas-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Tiles.Zoom != 9 {
		t.Errorf("expected zoom 9, got %d", cfg.Tiles.Zoom)
	}
	if cfg.Orientation.Mode != "mouse" {
		t.Errorf("expected mouse mode, got %s", cfg.Orientation.Mode)
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("SKYCANVAS_SKY_OPACITY", "1.5")

	_, err := config.Load("skycanvas-test")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "sky.opacity") {
		t.Errorf("expected sky.opacity in error, got %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg, err := config.Load("skycanvas-test")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Render.FPS = 0
	cfg.Cache.Driver = "memcached"
	cfg.Sky.FadeFar = cfg.Sky.FadeNear
	cfg.Orientation.Sensor = "gyro"

	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"render.fps", "cache.driver", "sky.fade_far", "orientation.sensor"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in error, got %v", want, err)
		}
	}
}
