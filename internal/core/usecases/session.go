package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/samirrijal/skycanvas/internal/core/domain"
)

// Session ties the tracker, the grid and the render loop together and
// owns their lifetimes.
type Session struct {
	Grid    *TileGridManager
	Tracker *LocationTracker
	Loop    *RenderLoop
	log     *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession wires already-built components into a session.
func NewSession(grid *TileGridManager, tracker *LocationTracker, loop *RenderLoop, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{Grid: grid, Tracker: tracker, Loop: loop, log: log.With("component", "session")}
}

// Start starts the render loop, then resolves the initial position, builds
// the first grid and starts location polling. Frames keep drawing while
// the first grid loads. A failed first grid is logged and does not stop
// the session.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("session already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Loop.Run(runCtx)
	}()

	p := s.Tracker.CurrentPosition(runCtx)
	s.log.Info("session starting", "position", p)
	if err := s.Grid.RebuildGrid(runCtx, p); err != nil {
		if errors.Is(err, domain.ErrClosed) {
			cancel()
			<-done
			return err
		}
		s.log.Warn("initial grid failed", "position", p, "error", err)
	}

	s.Tracker.Start(runCtx)

	s.cancel, s.done = cancel, done
	return nil
}

// Close stops polling and rendering and releases the grid.
func (s *Session) Close() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	s.Tracker.Stop()
	if cancel != nil {
		cancel()
		<-done
	}
	s.Grid.Close()
	s.log.Info("session closed")
}
