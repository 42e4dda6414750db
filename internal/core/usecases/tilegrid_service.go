package usecases

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/skycanvas/internal/core/domain"
	"github.com/samirrijal/skycanvas/internal/core/ports"
	"github.com/samirrijal/skycanvas/internal/pkg/geospatial"
	"github.com/samirrijal/skycanvas/internal/pkg/metrics"
)

// GridConfig holds the tile-grid parameters.
type GridConfig struct {
	Zoom         int
	TileSize     float64
	Height       float64
	Opacity      float64
	Fade         domain.Fade
	FetchTimeout time.Duration
}

type gridCell struct {
	domain.TileCell
	plane ports.Plane
}

type pendingBuild struct {
	gen    uint64
	center domain.TileIndex
	cancel context.CancelFunc
}

// TileGridManager owns the 3×3 grid of sky planes around the viewer.
// It is the only writer of the grid's cells.
type TileGridManager struct {
	fetcher ports.TileFetcher
	scene   ports.Scene
	cfg     GridConfig
	log     *slog.Logger

	mu      sync.Mutex
	cells   []*gridCell
	proj    domain.Projection
	height  float64
	opacity float64
	gen     uint64
	pending *pendingBuild
	closed  bool
}

// NewTileGridManager creates a manager with an empty grid.
func NewTileGridManager(fetcher ports.TileFetcher, scene ports.Scene, cfg GridConfig, log *slog.Logger) *TileGridManager {
	if log == nil {
		log = slog.Default()
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	return &TileGridManager{
		fetcher: fetcher,
		scene:   scene,
		cfg:     cfg,
		log:     log.With("component", "tilegrid"),
		height:  cfg.Height,
		opacity: clamp01(cfg.Opacity),
	}
}

// Refresh implements ports.TileRefreshPort.
func (m *TileGridManager) Refresh(ctx context.Context, p domain.GeoPoint) error {
	return m.RebuildGrid(ctx, p)
}

// RebuildGrid replaces the grid with the neighborhood of p. The previous
// grid stays visible until all 9 new textures have settled, then both
// grids are exchanged in one scene batch.
//
// A newer call cancels an older pending one; the older call returns
// domain.ErrSuperseded and its planes are released without being shown.
func (m *TileGridManager) RebuildGrid(ctx context.Context, p domain.GeoPoint) error {
	proj, err := geospatial.Project(p.ClampMercator(), m.cfg.Zoom, m.cfg.TileSize)
	if err != nil {
		return fmt.Errorf("project %s: %w", p, err)
	}

	start := time.Now()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return domain.ErrClosed
	}

	if m.pending != nil {
		m.pending.cancel()
		m.pending = nil
		// The cancelled build must not swap in once it wakes up, even if
		// this call ends up only sliding the live grid.
		m.gen++
		metrics.GridSuperseded.Inc()
	}

	// Same center tile: slide the live grid, nothing to fetch.
	if len(m.cells) == 9 && m.proj.Tile == proj.Tile {
		m.proj = proj
		m.placeLocked(m.cells)
		m.mu.Unlock()
		metrics.GridRepositions.Inc()
		m.log.Debug("grid repositioned", "tile", proj.Tile, "offset_x", proj.Offset.X, "offset_y", proj.Offset.Y)
		return nil
	}

	m.gen++
	gen := m.gen
	buildCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.pending = &pendingBuild{gen: gen, center: proj.Tile, cancel: cancel}

	next := make([]*gridCell, 0, len(domain.GridOffsets))
	m.scene.Batch(func() {
		for _, rel := range domain.GridOffsets {
			c := &gridCell{
				TileCell: domain.TileCell{
					Tile:  proj.Tile.Neighbor(rel.DX, rel.DY),
					Rel:   rel,
					World: CellWorldPosition(proj, rel, m.height),
					State: domain.CellPending,
				},
				plane: m.scene.NewPlane(m.cfg.TileSize),
			}
			c.plane.SetVisible(false)
			c.plane.SetFade(m.cfg.Fade)
			c.plane.SetPosition(c.World)
			next = append(next, c)
		}
	})
	m.mu.Unlock()

	m.log.Debug("grid rebuild started", "tile", proj.Tile, "gen", gen)

	images := m.fetchAll(buildCtx, next)

	m.mu.Lock()
	defer m.mu.Unlock()

	var abort error
	switch {
	case m.closed:
		abort = domain.ErrClosed
	case m.gen != gen:
		abort = domain.ErrSuperseded
	case ctx.Err() != nil:
		abort = ctx.Err()
	case buildCtx.Err() != nil:
		abort = domain.ErrSuperseded
	}
	if abort != nil {
		m.scene.Batch(func() {
			for _, c := range next {
				c.plane.Dispose()
			}
		})
		if m.pending != nil && m.pending.gen == gen {
			m.pending = nil
		}
		m.log.Debug("grid rebuild discarded", "tile", proj.Tile, "gen", gen, "reason", abort)
		return abort
	}

	loaded, failed := 0, 0
	old := m.cells
	m.proj = proj
	m.scene.Batch(func() {
		for i, c := range next {
			if images[i] != nil {
				c.plane.SetTexture(images[i])
				c.State = domain.CellLoaded
				loaded++
			} else {
				c.State = domain.CellFailed
				failed++
			}
		}
		for _, c := range old {
			c.plane.Dispose()
		}
		m.placeCells(next)
		for _, c := range next {
			c.plane.SetOpacity(m.opacity)
			c.plane.SetVisible(true)
		}
	})
	m.cells = next
	m.pending = nil

	metrics.GridSwaps.Inc()
	metrics.SwapDuration.Observe(time.Since(start).Seconds())
	m.log.Info("grid swapped",
		"tile", proj.Tile,
		"tile_center", geospatial.TileCenter(proj.Tile),
		"loaded", loaded,
		"failed", failed,
		"elapsed", time.Since(start).String(),
	)
	return nil
}

// fetchAll loads one texture per cell and returns when every fetch has
// settled. Failed or timed-out cells get a nil image.
func (m *TileGridManager) fetchAll(ctx context.Context, cells []*gridCell) []image.Image {
	images := make([]image.Image, len(cells))

	var wg sync.WaitGroup
	for i, c := range cells {
		if !c.Tile.Valid() {
			// Past a pole: nothing to fetch, the cell stays a placeholder.
			metrics.TileFetches.WithLabelValues("off_grid").Inc()
			continue
		}
		wg.Add(1)
		go func(i int, tile domain.TileIndex) {
			defer wg.Done()

			fctx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
			defer cancel()

			start := time.Now()
			img, err := m.fetcher.Fetch(fctx, tile)
			metrics.TileFetchDuration.Observe(time.Since(start).Seconds())

			switch {
			case err == nil && img != nil:
				images[i] = img
				metrics.TileFetches.WithLabelValues("ok").Inc()
			case errors.Is(err, context.DeadlineExceeded):
				metrics.TileFetches.WithLabelValues("timeout").Inc()
				m.log.Warn("tile fetch timed out", "tile", tile)
			case errors.Is(err, context.Canceled):
				metrics.TileFetches.WithLabelValues("cancelled").Inc()
			case errors.Is(err, domain.ErrTileNotFound):
				metrics.TileFetches.WithLabelValues("not_found").Inc()
				m.log.Debug("tile has no content", "tile", tile)
			default:
				metrics.TileFetches.WithLabelValues("error").Inc()
				m.log.Warn("tile fetch failed", "tile", tile, "error", err)
			}
		}(i, c.Tile)
	}
	wg.Wait()

	return images
}

// placeLocked recomputes world positions for cells from the current
// projection and height. Callers hold m.mu.
func (m *TileGridManager) placeLocked(cells []*gridCell) {
	m.scene.Batch(func() { m.placeCells(cells) })
}

// placeCells is placeLocked for callers already inside a scene batch.
func (m *TileGridManager) placeCells(cells []*gridCell) {
	for _, c := range cells {
		c.World = CellWorldPosition(m.proj, c.Rel, m.height)
		c.plane.SetPosition(c.World)
	}
}

// SetHeight moves every cell to a new altitude.
func (m *TileGridManager) SetHeight(h float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.height = h
	m.placeLocked(m.cells)
}

// SetOpacity changes the transparency of every cell. Values are clamped to [0,1].
func (m *TileGridManager) SetOpacity(a float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opacity = clamp01(a)
	m.scene.Batch(func() {
		for _, c := range m.cells {
			c.plane.SetOpacity(m.opacity)
		}
	})
}

// Height returns the current sky height.
func (m *TileGridManager) Height() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.height
}

// Opacity returns the current cell opacity.
func (m *TileGridManager) Opacity() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opacity
}

// Pending reports whether a rebuild is waiting for its fetches.
func (m *TileGridManager) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}

// Grid returns a snapshot of the live grid.
func (m *TileGridManager) Grid() domain.TileGrid {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := domain.TileGrid{Center: m.proj.Tile, Projection: m.proj}
	for _, c := range m.cells {
		g.Cells = append(g.Cells, c.TileCell)
		if c.Tile.Valid() {
			g.Bounds = g.Bounds.Extend(c.Tile.Bounds())
		}
	}
	return g
}

// Close releases every plane and makes later rebuilds fail with
// domain.ErrClosed. Fetches still in flight finish and are dropped.
func (m *TileGridManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	if m.pending != nil {
		m.pending.cancel()
		m.pending = nil
	}
	m.scene.Batch(func() {
		for _, c := range m.cells {
			c.plane.Dispose()
		}
	})
	m.cells = nil
}

// CellWorldPosition places a grid slot in world space (X east, Z north,
// Y up). The center cell is shifted so that the projected point sits
// under the origin; neighbors step one tile per slot, with tile Y
// growing southwards and world Z growing northwards.
func CellWorldPosition(proj domain.Projection, rel domain.RelOffset, height float64) domain.Vec3 {
	half := proj.TileSize / 2
	cx := half - float64(proj.Offset.X)
	cz := -(half - float64(proj.Offset.Y))
	return domain.Vec3{
		X: cx + float64(rel.DX)*proj.TileSize,
		Y: height,
		Z: cz - float64(rel.DY)*proj.TileSize,
	}
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
