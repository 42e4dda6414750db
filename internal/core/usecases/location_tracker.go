package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/skycanvas/internal/core/domain"
	"github.com/samirrijal/skycanvas/internal/core/ports"
	"github.com/samirrijal/skycanvas/internal/pkg/geospatial"
	"github.com/samirrijal/skycanvas/internal/pkg/metrics"
)

// FallbackNotice is shown once when no position could be obtained.
const FallbackNotice = "Location unavailable, using default location"

// TrackerConfig holds location polling parameters.
type TrackerConfig struct {
	PollInterval      time.Duration
	MovementThreshold float64 // meters
	Fallback          domain.GeoPoint
	Options           domain.LocateOptions
}

// LocationTracker decides where the viewer is. In live mode it polls the
// locator and asks for a new grid once the viewer has moved far enough.
// A manual override suspends polling until it is cleared.
type LocationTracker struct {
	locator   ports.Locator
	refresher ports.TileRefreshPort
	notifier  ports.Notifier
	cfg       TrackerConfig
	log       *slog.Logger

	mu           sync.Mutex
	override     *domain.GeoPoint
	lastKnown    *domain.GeoPoint
	fallbackUsed bool
	parent       context.Context
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewLocationTracker creates a stopped tracker in live mode.
func NewLocationTracker(locator ports.Locator, refresher ports.TileRefreshPort, notifier ports.Notifier, cfg TrackerConfig, log *slog.Logger) *LocationTracker {
	if log == nil {
		log = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	return &LocationTracker{
		locator:   locator,
		refresher: refresher,
		notifier:  notifier,
		cfg:       cfg,
		log:       log.With("component", "location"),
	}
}

// Start begins periodic polling. It is a no-op while an override is set
// or when polling is already running; ClearOverride resumes it.
func (t *LocationTracker) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.parent = ctx
	if t.override == nil {
		t.startTimerLocked()
	}
}

// Stop halts polling and waits for an in-flight poll to return.
func (t *LocationTracker) Stop() {
	t.mu.Lock()
	done := t.stopTimerLocked()
	t.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Running reports whether the poll timer is active.
func (t *LocationTracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

func (t *LocationTracker) startTimerLocked() {
	if t.cancel != nil || t.parent == nil {
		return
	}
	ctx, cancel := context.WithCancel(t.parent)
	done := make(chan struct{})
	t.cancel, t.done = cancel, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(t.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := t.Poll(ctx); err != nil && ctx.Err() == nil {
					t.log.Warn("location poll failed", "error", err)
				}
			}
		}
	}()
}

// stopTimerLocked cancels the poll goroutine and returns a channel that is
// closed once it has exited. Callers wait on it after releasing t.mu.
func (t *LocationTracker) stopTimerLocked() <-chan struct{} {
	if t.cancel == nil {
		return nil
	}
	t.cancel()
	done := t.done
	t.cancel, t.done = nil, nil
	return done
}

// Poll takes one live sample and refreshes the grid if the viewer moved
// more than the movement threshold. It does nothing while overridden.
func (t *LocationTracker) Poll(ctx context.Context) error {
	if t.Mode() == domain.ModeOverride {
		metrics.LocationPolls.WithLabelValues("skipped").Inc()
		return nil
	}

	fix, err := t.locator.Locate(ctx, t.cfg.Options)
	if err != nil {
		if t.useFallback(ctx) {
			metrics.LocationPolls.WithLabelValues("fallback").Inc()
			return nil
		}
		metrics.LocationPolls.WithLabelValues("error").Inc()
		return fmt.Errorf("locate: %w", err)
	}
	if err := fix.Point.Validate(); err != nil {
		metrics.LocationPolls.WithLabelValues("error").Inc()
		return fmt.Errorf("locate: %w", err)
	}

	t.mu.Lock()
	// An override may have been set while the locator was busy.
	if t.override != nil {
		t.mu.Unlock()
		metrics.LocationPolls.WithLabelValues("skipped").Inc()
		return nil
	}
	if t.lastKnown == nil {
		p := fix.Point
		t.lastKnown = &p
		t.mu.Unlock()
		metrics.LocationPolls.WithLabelValues("first").Inc()
		return nil
	}
	moved := geospatial.Distance(*t.lastKnown, fix.Point)
	if moved <= t.cfg.MovementThreshold {
		t.mu.Unlock()
		metrics.LocationPolls.WithLabelValues("still").Inc()
		return nil
	}
	p := fix.Point
	t.lastKnown = &p
	t.mu.Unlock()

	metrics.LocationPolls.WithLabelValues("moved").Inc()
	t.log.Info("viewer moved", "position", p, "meters", moved, "accuracy_m", fix.AccuracyMeters)
	return t.refresher.Refresh(ctx, p)
}

// useFallback stores the fallback coordinate the first time no position
// is known at all. It reports whether the fallback was applied.
func (t *LocationTracker) useFallback(ctx context.Context) bool {
	t.mu.Lock()
	if t.lastKnown != nil || t.fallbackUsed {
		t.mu.Unlock()
		return false
	}
	fb := t.cfg.Fallback
	t.lastKnown = &fb
	t.fallbackUsed = true
	t.mu.Unlock()

	t.log.Warn("location unavailable, using fallback", "position", fb)
	if t.notifier != nil {
		t.notifier.Notify(ctx, FallbackNotice)
	}
	return true
}

// SetOverride pins the viewer to p, stops polling and refreshes the grid.
func (t *LocationTracker) SetOverride(ctx context.Context, p domain.GeoPoint) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("override %s: %w", p, err)
	}

	t.mu.Lock()
	t.override = &p
	done := t.stopTimerLocked()
	t.mu.Unlock()
	if done != nil {
		<-done
	}

	t.log.Info("location override set", "position", p)
	return t.refresher.Refresh(ctx, p)
}

// ClearOverride returns to live mode. Polling resumes and the grid is
// refreshed at a fresh live sample right away.
func (t *LocationTracker) ClearOverride(ctx context.Context) error {
	t.mu.Lock()
	if t.override == nil {
		t.mu.Unlock()
		return nil
	}
	t.override = nil
	t.startTimerLocked()
	t.mu.Unlock()

	t.log.Info("location override cleared")

	fix, err := t.locator.Locate(ctx, t.cfg.Options)
	if err != nil {
		t.useFallback(ctx)
		p, ok := t.LastKnown()
		if !ok {
			return fmt.Errorf("locate: %w", err)
		}
		return t.refresher.Refresh(ctx, p)
	}

	t.mu.Lock()
	if t.override != nil {
		t.mu.Unlock()
		return nil
	}
	p := fix.Point
	t.lastKnown = &p
	t.mu.Unlock()

	return t.refresher.Refresh(ctx, p)
}

// CurrentPosition returns the override, else the last known position,
// else a fresh sample, else the fallback coordinate.
func (t *LocationTracker) CurrentPosition(ctx context.Context) domain.GeoPoint {
	t.mu.Lock()
	switch {
	case t.override != nil:
		p := *t.override
		t.mu.Unlock()
		return p
	case t.lastKnown != nil:
		p := *t.lastKnown
		t.mu.Unlock()
		return p
	}
	t.mu.Unlock()

	fix, err := t.locator.Locate(ctx, t.cfg.Options)
	if err == nil && fix.Point.Validate() == nil {
		t.mu.Lock()
		if t.lastKnown == nil {
			p := fix.Point
			t.lastKnown = &p
		}
		t.mu.Unlock()
		return fix.Point
	}

	t.log.Debug("initial locate failed", "error", err)
	t.useFallback(ctx)
	return t.cfg.Fallback
}

// Mode reports whether the tracker follows the locator or an override.
func (t *LocationTracker) Mode() domain.TrackingMode {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.override != nil {
		return domain.ModeOverride
	}
	return domain.ModeLive
}

// Override returns the manual position, if any.
func (t *LocationTracker) Override() (domain.GeoPoint, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.override == nil {
		return domain.GeoPoint{}, false
	}
	return *t.override, true
}

// LastKnown returns the last accepted live position, if any.
func (t *LocationTracker) LastKnown() (domain.GeoPoint, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastKnown == nil {
		return domain.GeoPoint{}, false
	}
	return *t.lastKnown, true
}

// State returns a copy of the tracker's state.
func (t *LocationTracker) State() domain.LocationState {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := domain.LocationState{
		PollInterval:      t.cfg.PollInterval,
		MovementThreshold: t.cfg.MovementThreshold,
		Polling:           t.cancel != nil,
	}
	if t.override != nil {
		p := *t.override
		s.Override = &p
	}
	if t.lastKnown != nil {
		p := *t.lastKnown
		s.LastKnown = &p
	}
	return s
}
