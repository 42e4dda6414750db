package geospatial

import (
	"fmt"
	"math"

	"github.com/samirrijal/skycanvas/internal/core/domain"
)

// MercatorUnit returns the coordinate's position on the unit square of
// the spherical Mercator projection, x eastwards and y southwards.
func MercatorUnit(p domain.GeoPoint) (x, y float64) {
	x = (p.Lon + 180) / 360
	y = (1 - math.Log(math.Tan(math.Pi/4+p.Lat*math.Pi/360))/math.Pi) / 2
	return x, y
}

// Project maps a coordinate to the tile containing it and the position
// inside that tile, in units of tileSize.
//
// Latitude is not clamped: callers pass points through
// GeoPoint.ClampMercator first. Anything that does not land on the grid
// returns domain.ErrInvalidInput.
func Project(p domain.GeoPoint, zoom int, tileSize float64) (domain.Projection, error) {
	if zoom < 0 || zoom > 30 {
		return domain.Projection{}, fmt.Errorf("%w: zoom %d", domain.ErrInvalidInput, zoom)
	}
	if !(tileSize > 0) || math.IsInf(tileSize, 0) {
		return domain.Projection{}, fmt.Errorf("%w: tile size %v", domain.ErrInvalidInput, tileSize)
	}
	if err := p.Validate(); err != nil {
		return domain.Projection{}, err
	}

	ux, uy := MercatorUnit(p)
	if math.IsNaN(uy) || math.IsInf(uy, 0) {
		return domain.Projection{}, fmt.Errorf("%w: latitude %f has no mercator image", domain.ErrInvalidInput, p.Lat)
	}

	n := math.Exp2(float64(zoom))
	sx, sy := ux*n, uy*n
	fx, fy := math.Floor(sx), math.Floor(sy)

	tile := domain.TileIndex{X: int(fx), Y: int(fy), Zoom: zoom}
	// lon = 180 lands exactly on the right edge; it is the same meridian as -180.
	if tile.X == int(n) {
		tile.X = 0
	}
	if !tile.Valid() {
		return domain.Projection{}, fmt.Errorf("%w: %s outside zoom %d grid", domain.ErrInvalidInput, p, zoom)
	}

	off := domain.PixelOffset{
		X: subTile(sx-fx, tileSize),
		Y: subTile(sy-fy, tileSize),
	}
	return domain.Projection{Tile: tile, Offset: off, TileSize: tileSize}, nil
}

// TileCenter returns the geographic center of a tile.
func TileCenter(t domain.TileIndex) domain.GeoPoint {
	c := t.Maptile().Bound().Center()
	return domain.GeoPoint{Lat: c.Lat(), Lon: c.Lon()}
}

func subTile(frac, tileSize float64) int {
	v := math.Floor(frac * tileSize)
	// frac*tileSize may round up to tileSize for frac just below 1.
	if v >= tileSize {
		v = math.Ceil(tileSize) - 1
	}
	return int(v)
}
