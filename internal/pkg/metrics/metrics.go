package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skycanvas",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "skycanvas",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "skycanvas",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Tile grid metrics
	TileFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skycanvas",
		Subsystem: "tiles",
		Name:      "fetches_total",
		Help:      "Tile texture fetches by result",
	}, []string{"result"})

	TileFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "skycanvas",
		Subsystem: "tiles",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of a single tile texture fetch",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	GridSwaps = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skycanvas",
		Subsystem: "grid",
		Name:      "swaps_total",
		Help:      "Completed old-to-new grid swaps",
	})

	GridRepositions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skycanvas",
		Subsystem: "grid",
		Name:      "repositions_total",
		Help:      "Rebuilds served by moving the live grid without refetching",
	})

	GridSuperseded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skycanvas",
		Subsystem: "grid",
		Name:      "superseded_total",
		Help:      "Rebuilds cancelled by a newer request",
	})

	SwapDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "skycanvas",
		Subsystem: "grid",
		Name:      "swap_duration_seconds",
		Help:      "Time from rebuild request to swap",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	// Location metrics
	LocationPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skycanvas",
		Subsystem: "location",
		Name:      "polls_total",
		Help:      "Location polls by outcome",
	}, []string{"outcome"})

	// Render metrics
	FramesRendered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skycanvas",
		Subsystem: "render",
		Name:      "frames_total",
		Help:      "Frames rendered",
	})

	RenderErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skycanvas",
		Subsystem: "render",
		Name:      "errors_total",
		Help:      "Frames whose render call failed",
	})

	// Proxy cache metrics
	ProxyCacheResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skycanvas",
		Subsystem: "proxy",
		Name:      "cache_results_total",
		Help:      "Tile proxy responses by cache result",
	}, []string{"result"})

	UpstreamFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "skycanvas",
		Subsystem: "proxy",
		Name:      "upstream_duration_seconds",
		Help:      "Duration of upstream tile fetches",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"status"})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
