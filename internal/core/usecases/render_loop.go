package usecases

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/samirrijal/skycanvas/internal/core/domain"
	"github.com/samirrijal/skycanvas/internal/core/ports"
	"github.com/samirrijal/skycanvas/internal/pkg/metrics"
)

// SensorFallbackNotice is shown once when the orientation sensor never
// reports and the loop switches to its fallback source.
const SensorFallbackNotice = "Orientation sensor unavailable, switched to mouse look."

// RenderLoop applies the latest orientation to the camera and draws a
// frame at a fixed rate.
type RenderLoop struct {
	scene    ports.Scene
	renderer ports.Renderer
	source   ports.OrientationSource
	filter   *OrientationFilter // nil means raw input, e.g. mouse look
	interval time.Duration
	log      *slog.Logger

	fallback ports.OrientationSource
	notifier ports.Notifier
	grace    time.Duration

	mu       sync.Mutex
	rotation mgl64.Quat
	waiting  time.Time // first frame without a sensor reading
	sensed   bool
	degraded bool
	frames   atomic.Uint64
}

// NewRenderLoop creates a loop running at fps frames per second.
func NewRenderLoop(scene ports.Scene, renderer ports.Renderer, source ports.OrientationSource, filter *OrientationFilter, fps int, log *slog.Logger) *RenderLoop {
	if log == nil {
		log = slog.Default()
	}
	if fps <= 0 {
		fps = 60
	}
	return &RenderLoop{
		scene:    scene,
		renderer: renderer,
		source:   source,
		filter:   filter,
		interval: time.Second / time.Duration(fps),
		log:      log.With("component", "render"),
		rotation: mgl64.QuatIdent(),
	}
}

// WithFallback switches the loop to source, unfiltered, when the primary
// source has not produced a single reading grace after the first frame.
// notifier, if set, is told once. Call before Run.
func (l *RenderLoop) WithFallback(source ports.OrientationSource, notifier ports.Notifier, grace time.Duration) *RenderLoop {
	l.fallback, l.notifier, l.grace = source, notifier, grace
	return l
}

// Frame runs one iteration: orientation, camera, render. Render errors
// are logged and counted; the loop keeps going.
func (l *RenderLoop) Frame(ctx context.Context, now time.Time) {
	if s, filter, ok := l.sample(ctx, now); ok {
		q := s.Rotation
		if filter != nil {
			if s.Timestamp.IsZero() {
				s.Timestamp = now
			}
			q = filter.Update(s)
		}
		l.mu.Lock()
		l.rotation = q
		l.mu.Unlock()
		l.scene.SetCameraRotation(q)
	}

	if err := l.renderer.Render(ctx); err != nil {
		metrics.RenderErrors.Inc()
		l.log.Warn("render failed", "error", err)
		return
	}
	l.frames.Add(1)
	metrics.FramesRendered.Inc()
}

// Run calls Frame on every tick until ctx is cancelled.
func (l *RenderLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.log.Info("render loop started", "interval", l.interval.String())
	for {
		select {
		case <-ctx.Done():
			l.log.Info("render loop stopped", "frames", l.frames.Load())
			return
		case now := <-ticker.C:
			l.Frame(ctx, now)
		}
	}
}

// sample reads the active source, switching to the fallback once the
// primary has stayed silent past the grace period.
func (l *RenderLoop) sample(ctx context.Context, now time.Time) (domain.OrientationSample, *OrientationFilter, bool) {
	l.mu.Lock()
	degraded := l.degraded
	l.mu.Unlock()
	if degraded {
		s, ok := l.fallback.Latest()
		return s, nil, ok
	}

	var (
		s  domain.OrientationSample
		ok bool
	)
	if l.source != nil {
		s, ok = l.source.Latest()
	}
	if l.fallback == nil {
		return s, l.filter, ok
	}

	l.mu.Lock()
	if ok {
		l.sensed = true
	}
	if ok || l.sensed {
		l.mu.Unlock()
		return s, l.filter, ok
	}
	if l.waiting.IsZero() {
		l.waiting = now
	}
	waited := now.Sub(l.waiting)
	if waited < l.grace {
		l.mu.Unlock()
		return s, l.filter, false
	}
	l.degraded = true
	l.mu.Unlock()

	l.log.Warn("no orientation readings, using fallback source", "waited", waited.String())
	if l.notifier != nil {
		l.notifier.Notify(ctx, SensorFallbackNotice)
	}
	s, ok = l.fallback.Latest()
	return s, nil, ok
}

// Degraded reports whether the loop has switched to its fallback source.
func (l *RenderLoop) Degraded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.degraded
}

// Rotation returns the camera rotation applied by the last frame.
func (l *RenderLoop) Rotation() mgl64.Quat {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rotation
}

// Frames returns the number of successfully rendered frames.
func (l *RenderLoop) Frames() uint64 {
	return l.frames.Load()
}
