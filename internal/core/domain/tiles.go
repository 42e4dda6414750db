package domain

import (
	"fmt"
	"image"
	"image/color"

	"github.com/paulmach/orb/maptile"
)

// TileIndex addresses one canvas tile at a zoom level.
type TileIndex struct {
	X    int `json:"x"`
	Y    int `json:"y"`
	Zoom int `json:"zoom"`
}

// Span is the number of tiles per axis at the index's zoom level.
func (t TileIndex) Span() int {
	return 1 << uint(t.Zoom)
}

// Valid reports whether the index lies inside the zoom level's grid.
func (t TileIndex) Valid() bool {
	n := t.Span()
	return t.Zoom >= 0 && t.X >= 0 && t.Y >= 0 && t.X < n && t.Y < n
}

// Neighbor returns the tile dx columns east and dy rows south. X wraps
// across the antimeridian. Rows past a pole are returned as is and fail
// Valid; they have no imagery.
func (t TileIndex) Neighbor(dx, dy int) TileIndex {
	n := t.Span()
	x := ((t.X+dx)%n + n) % n
	return TileIndex{X: x, Y: t.Y + dy, Zoom: t.Zoom}
}

// Maptile converts the index to an orb maptile.
func (t TileIndex) Maptile() maptile.Tile {
	return maptile.New(uint32(t.X), uint32(t.Y), maptile.Zoom(t.Zoom))
}

// Bounds returns the geographic extent of the tile.
func (t TileIndex) Bounds() Bounds {
	b := t.Maptile().Bound()
	return Bounds{MinLat: b.Min.Lat(), MinLon: b.Min.Lon(), MaxLat: b.Max.Lat(), MaxLon: b.Max.Lon()}
}

// Key is a stable string form used for caches and logs.
func (t TileIndex) Key() string {
	return fmt.Sprintf("%d/%d/%d", t.Zoom, t.X, t.Y)
}

func (t TileIndex) String() string { return t.Key() }

// PixelOffset is the viewer's position inside a tile, in tile-local units.
type PixelOffset struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Projection is the result of projecting a coordinate onto the tile grid.
type Projection struct {
	Tile     TileIndex   `json:"tile"`
	Offset   PixelOffset `json:"offset"`
	TileSize float64     `json:"tile_size"`
}

// Vec3 is a world-space position. X points east, Y up, Z north.
type Vec3 struct {
	X, Y, Z float64
}

// CellState tracks a cell's texture lifecycle.
type CellState int

const (
	CellPending CellState = iota
	CellLoaded
	CellFailed
)

func (s CellState) String() string {
	switch s {
	case CellLoaded:
		return "loaded"
	case CellFailed:
		return "failed"
	default:
		return "pending"
	}
}

// RelOffset is a cell's slot relative to the center tile.
type RelOffset struct {
	DX, DY int
}

// GridOffsets lists the 9 slots of a grid, row-major from north-west.
var GridOffsets = func() []RelOffset {
	out := make([]RelOffset, 0, 9)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			out = append(out, RelOffset{DX: dx, DY: dy})
		}
	}
	return out
}()

// TileCell is one slot of the grid.
type TileCell struct {
	Tile  TileIndex
	Rel   RelOffset
	World Vec3
	State CellState
}

// TileGrid is a snapshot of the 9 cells around a center tile. Bounds
// covers every cell that maps to a real tile.
type TileGrid struct {
	Center     TileIndex
	Projection Projection
	Bounds     Bounds
	Cells      []TileCell
}

// Cell returns the cell at a relative slot.
func (g TileGrid) Cell(dx, dy int) (TileCell, bool) {
	for _, c := range g.Cells {
		if c.Rel.DX == dx && c.Rel.DY == dy {
			return c, true
		}
	}
	return TileCell{}, false
}

// Complete reports whether the grid holds exactly the 9 slots.
func (g TileGrid) Complete() bool {
	if len(g.Cells) != 9 {
		return false
	}
	seen := make(map[RelOffset]bool, 9)
	for _, c := range g.Cells {
		if c.Rel.DX < -1 || c.Rel.DX > 1 || c.Rel.DY < -1 || c.Rel.DY > 1 || seen[c.Rel] {
			return false
		}
		seen[c.Rel] = true
	}
	return true
}

// Fade is the distance ramp hiding the grid's hard edge.
type Fade struct {
	Near float64
	Far  float64
}

// Alpha returns the fade multiplier at a horizontal distance from the viewer.
func (f Fade) Alpha(distance float64) float64 {
	if distance <= f.Near {
		return 1
	}
	if distance >= f.Far || f.Far <= f.Near {
		return 0
	}
	return 1 - (distance-f.Near)/(f.Far-f.Near)
}

// Texture is a decoded tile image ready for upload.
type Texture struct {
	Tile  TileIndex
	Image image.Image
}

// PlaceholderColor fills cells whose texture is missing.
var PlaceholderColor = color.RGBA{R: 200, G: 220, B: 255, A: 255}
