package usecases_test

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/samirrijal/skycanvas/internal/core/domain"
	"github.com/samirrijal/skycanvas/internal/core/usecases"
)

func TestSession_StartAndClose(t *testing.T) {
	scene := &mockScene{}
	r := &mockRenderer{}
	grid := usecases.NewTileGridManager(&mockFetcher{}, scene, gridConfig(), nil)
	loc := &mockLocator{locateFn: fixAt(bilbao)}
	tracker := usecases.NewLocationTracker(loc, grid, &mockNotifier{}, trackerConfig(), nil)
	loop := usecases.NewRenderLoop(scene, r, nil, nil, 200, nil)
	s := usecases.NewSession(grid, tracker, loop, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("expected second Start to fail")
	}

	g := grid.Grid()
	if !g.Complete() {
		t.Fatalf("expected a complete first grid, got %d cells", len(g.Cells))
	}
	if !tracker.Running() {
		t.Error("expected tracker to be polling")
	}

	deadline := time.Now().Add(2 * time.Second)
	for r.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if r.calls.Load() == 0 {
		t.Error("expected the render loop to draw frames")
	}

	s.Close()

	if tracker.Running() {
		t.Error("expected tracker to be stopped")
	}
	if n := scene.visible(); n != 0 {
		t.Errorf("expected no visible planes after close, got %d", n)
	}
	frames := r.calls.Load()
	time.Sleep(20 * time.Millisecond)
	if r.calls.Load() != frames {
		t.Error("expected no frames after close")
	}
}

func TestSession_FallbackStart(t *testing.T) {
	scene := &mockScene{}
	note := &mockNotifier{}
	grid := usecases.NewTileGridManager(&mockFetcher{}, scene, gridConfig(), nil)
	tracker := usecases.NewLocationTracker(&mockLocator{}, grid, note, trackerConfig(), nil)
	loop := usecases.NewRenderLoop(scene, &mockRenderer{}, nil, nil, 60, nil)
	s := usecases.NewSession(grid, tracker, loop, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	if g := grid.Grid(); g.Center.X != 572 || g.Center.Y != 747 {
		t.Errorf("expected grid at the fallback tile, got %s", g.Center)
	}
	if note.count() != 1 {
		t.Errorf("expected one fallback notice, got %d", note.count())
	}
}

func TestSession_RendersWhileFirstGridLoads(t *testing.T) {
	release := make(chan struct{})
	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, tile domain.TileIndex) (image.Image, error) {
			select {
			case <-release:
				return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	scene := &mockScene{}
	r := &mockRenderer{}
	grid := usecases.NewTileGridManager(fetcher, scene, gridConfig(), nil)
	tracker := usecases.NewLocationTracker(&mockLocator{locateFn: fixAt(bilbao)}, grid, &mockNotifier{}, trackerConfig(), nil)
	loop := usecases.NewRenderLoop(scene, r, nil, nil, 200, nil)
	s := usecases.NewSession(grid, tracker, loop, nil)

	started := make(chan error, 1)
	go func() { started <- s.Start(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for !grid.Pending() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !grid.Pending() {
		t.Fatal("expected the first grid to be pending")
	}
	before := r.calls.Load()
	for r.calls.Load() <= before+2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if r.calls.Load() <= before+2 {
		t.Fatal("expected frames while the first grid is loading")
	}
	select {
	case err := <-started:
		t.Fatalf("Start returned before the grid settled: %v", err)
	default:
	}

	close(release)
	if err := <-started; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	if g := grid.Grid(); !g.Complete() {
		t.Errorf("expected a complete first grid, got %d cells", len(g.Cells))
	}
}

func TestSession_StartOnClosedGrid(t *testing.T) {
	scene := &mockScene{}
	r := &mockRenderer{}
	grid := usecases.NewTileGridManager(&mockFetcher{}, scene, gridConfig(), nil)
	grid.Close()
	tracker := usecases.NewLocationTracker(&mockLocator{locateFn: fixAt(bilbao)}, grid, &mockNotifier{}, trackerConfig(), nil)
	s := usecases.NewSession(grid, tracker, usecases.NewRenderLoop(scene, r, nil, nil, 200, nil), nil)

	if err := s.Start(context.Background()); !errors.Is(err, domain.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if tracker.Running() {
		t.Error("expected tracker not to start")
	}
	frames := r.calls.Load()
	time.Sleep(20 * time.Millisecond)
	if r.calls.Load() != frames {
		t.Error("expected the render loop to be stopped")
	}
}
