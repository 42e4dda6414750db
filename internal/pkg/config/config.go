package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/samirrijal/skycanvas/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Tiles       TilesConfig       `mapstructure:"tiles"`
	Sky         SkyConfig         `mapstructure:"sky"`
	Orientation OrientationConfig `mapstructure:"orientation"`
	Location    LocationConfig    `mapstructure:"location"`
	Render      RenderConfig      `mapstructure:"render"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Proxy       ProxyConfig       `mapstructure:"proxy"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	MetricsPort  int `mapstructure:"metrics_port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type TilesConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Zoom           int    `mapstructure:"zoom"`
	Size           int    `mapstructure:"size"`       // world units per tile
	Resolution     int    `mapstructure:"resolution"` // texture pixels per side
	FetchTimeoutMs int    `mapstructure:"fetch_timeout_ms"`
	Retries        int    `mapstructure:"retries"`
	TextureTTL     int    `mapstructure:"texture_ttl"` // seconds, 0 disables
	TextureCache   int    `mapstructure:"texture_cache"`
}

func (t TilesConfig) FetchTimeout() time.Duration {
	return time.Duration(t.FetchTimeoutMs) * time.Millisecond
}

type SkyConfig struct {
	Height   float64 `mapstructure:"height"`
	Opacity  float64 `mapstructure:"opacity"`
	FadeNear float64 `mapstructure:"fade_near"`
	FadeFar  float64 `mapstructure:"fade_far"`
}

func (s SkyConfig) Fade() domain.Fade {
	return domain.Fade{Near: s.FadeNear, Far: s.FadeFar}
}

type OrientationConfig struct {
	Mode       string  `mapstructure:"mode"`   // "device" or "mouse"
	Sensor     string  `mapstructure:"sensor"` // "sweep" or "none"
	SensorRate int     `mapstructure:"sensor_rate"`
	FallbackMs int     `mapstructure:"fallback_ms"`
	SlowTau    float64 `mapstructure:"slow_tau"`
	BaseTau    float64 `mapstructure:"base_tau"`
	Window     float64 `mapstructure:"window"` // radians
	MinDt      float64 `mapstructure:"min_dt"`
}

// FallbackGrace is how long device mode waits for a first sensor
// reading before switching to mouse look.
func (o OrientationConfig) FallbackGrace() time.Duration {
	return time.Duration(o.FallbackMs) * time.Millisecond
}

type LocationConfig struct {
	PollInterval      int     `mapstructure:"poll_interval"` // seconds
	MovementThreshold float64 `mapstructure:"movement_threshold"`
	FallbackLat       float64 `mapstructure:"fallback_lat"`
	FallbackLon       float64 `mapstructure:"fallback_lon"`
	HighAccuracy      bool    `mapstructure:"high_accuracy"`
	TimeoutMs         int     `mapstructure:"timeout_ms"`
	MaxAgeMs          int     `mapstructure:"max_age_ms"`
	GPXFile           string  `mapstructure:"gpx_file"`
}

func (l LocationConfig) Fallback() domain.GeoPoint {
	return domain.GeoPoint{Lat: l.FallbackLat, Lon: l.FallbackLon}
}

func (l LocationConfig) Options() domain.LocateOptions {
	return domain.LocateOptions{
		HighAccuracy: l.HighAccuracy,
		Timeout:      time.Duration(l.TimeoutMs) * time.Millisecond,
		MaxAge:       time.Duration(l.MaxAgeMs) * time.Millisecond,
	}
}

type RenderConfig struct {
	FPS int `mapstructure:"fps"`
}

type CacheConfig struct {
	Driver string `mapstructure:"driver"` // "valkey", "redis" or "none"
	Addr   string `mapstructure:"addr"`
}

type ProxyConfig struct {
	Upstream     string `mapstructure:"upstream"`
	FreshSeconds int    `mapstructure:"fresh_seconds"`
	StaleSeconds int    `mapstructure:"stale_seconds"`
	NotFoundTTL  int    `mapstructure:"not_found_ttl"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	OTLPAddr    string `mapstructure:"otlp_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// Load reads configuration from .env, file and environment variables.
func Load(service string) (*Config, error) {
	_ = godotenv.Load(".env") // OK if missing

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics_port", 0)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("tiles.base_url", "http://localhost:8080")
	v.SetDefault("tiles.zoom", 11)
	v.SetDefault("tiles.size", 1000)
	v.SetDefault("tiles.resolution", 1000)
	v.SetDefault("tiles.fetch_timeout_ms", 8000)
	v.SetDefault("tiles.retries", 2)
	v.SetDefault("tiles.texture_ttl", 30)
	v.SetDefault("tiles.texture_cache", 64)
	v.SetDefault("sky.height", 150)
	v.SetDefault("sky.opacity", 0.85)
	v.SetDefault("sky.fade_near", 1100)
	v.SetDefault("sky.fade_far", 1500)
	v.SetDefault("orientation.mode", "device")
	v.SetDefault("orientation.sensor", "sweep")
	v.SetDefault("orientation.sensor_rate", 60)
	v.SetDefault("orientation.fallback_ms", 3000)
	v.SetDefault("orientation.slow_tau", 0.25)
	v.SetDefault("orientation.base_tau", 0.04)
	v.SetDefault("orientation.window", 0.25)
	v.SetDefault("orientation.min_dt", 0.001)
	v.SetDefault("location.poll_interval", 10)
	v.SetDefault("location.movement_threshold", 25)
	v.SetDefault("location.fallback_lat", 43.642567)
	v.SetDefault("location.fallback_lon", -79.387054)
	v.SetDefault("location.high_accuracy", true)
	v.SetDefault("location.timeout_ms", 10000)
	v.SetDefault("location.max_age_ms", 0)
	v.SetDefault("location.gpx_file", "")
	v.SetDefault("render.fps", 60)
	v.SetDefault("cache.driver", "valkey")
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("proxy.upstream", "https://backend.wplace.live")
	v.SetDefault("proxy.fresh_seconds", 30)
	v.SetDefault("proxy.stale_seconds", 600)
	v.SetDefault("proxy.not_found_ttl", 60)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_addr", "localhost:4317")
	v.SetDefault("telemetry.enabled", false)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: SKYCANVAS_TILES_ZOOM → tiles.zoom
	v.SetEnvPrefix("SKYCANVAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, fmt.Sprintf("server.metrics_port must be 0-65535, got %d", c.Server.MetricsPort))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Tiles.BaseURL == "" {
		errs = append(errs, "tiles.base_url is required")
	}
	if c.Tiles.Zoom < 0 || c.Tiles.Zoom > 22 {
		errs = append(errs, fmt.Sprintf("tiles.zoom must be 0-22, got %d", c.Tiles.Zoom))
	}
	if c.Tiles.Size <= 0 {
		errs = append(errs, "tiles.size must be positive")
	}
	if c.Tiles.Resolution <= 0 {
		errs = append(errs, "tiles.resolution must be positive")
	}
	if c.Tiles.FetchTimeoutMs <= 0 {
		errs = append(errs, "tiles.fetch_timeout_ms must be positive")
	}
	if c.Tiles.Retries < 0 {
		errs = append(errs, "tiles.retries must not be negative")
	}
	if c.Sky.Opacity < 0 || c.Sky.Opacity > 1 {
		errs = append(errs, fmt.Sprintf("sky.opacity must be 0-1, got %f", c.Sky.Opacity))
	}
	if c.Sky.FadeFar <= c.Sky.FadeNear {
		errs = append(errs, "sky.fade_far must be greater than sky.fade_near")
	}
	if c.Orientation.Mode != "device" && c.Orientation.Mode != "mouse" {
		errs = append(errs, fmt.Sprintf("orientation.mode must be device or mouse, got %q", c.Orientation.Mode))
	}
	if c.Orientation.Sensor != "sweep" && c.Orientation.Sensor != "none" {
		errs = append(errs, fmt.Sprintf("orientation.sensor must be sweep or none, got %q", c.Orientation.Sensor))
	}
	if c.Orientation.SensorRate <= 0 || c.Orientation.FallbackMs <= 0 {
		errs = append(errs, "orientation.sensor_rate and orientation.fallback_ms must be positive")
	}
	if c.Orientation.SlowTau <= 0 || c.Orientation.BaseTau <= 0 {
		errs = append(errs, "orientation time constants must be positive")
	}
	if c.Orientation.Window <= 0 {
		errs = append(errs, "orientation.window must be positive")
	}
	if c.Orientation.MinDt <= 0 {
		errs = append(errs, "orientation.min_dt must be positive")
	}
	if c.Location.PollInterval <= 0 {
		errs = append(errs, "location.poll_interval must be positive")
	}
	if c.Location.MovementThreshold < 0 {
		errs = append(errs, "location.movement_threshold must not be negative")
	}
	if err := c.Location.Fallback().Validate(); err != nil {
		errs = append(errs, "location fallback: "+err.Error())
	}
	if c.Render.FPS <= 0 || c.Render.FPS > 240 {
		errs = append(errs, fmt.Sprintf("render.fps must be 1-240, got %d", c.Render.FPS))
	}
	switch c.Cache.Driver {
	case "valkey", "redis":
		if c.Cache.Addr == "" {
			errs = append(errs, "cache.addr is required")
		}
	case "none":
	default:
		errs = append(errs, fmt.Sprintf("cache.driver must be valkey, redis or none, got %q", c.Cache.Driver))
	}
	if c.Proxy.Upstream == "" {
		errs = append(errs, "proxy.upstream is required")
	}
	if c.Proxy.FreshSeconds <= 0 {
		errs = append(errs, "proxy.fresh_seconds must be positive")
	}
	if c.Proxy.StaleSeconds < 0 {
		errs = append(errs, "proxy.stale_seconds must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
