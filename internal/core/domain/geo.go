package domain

import (
	"fmt"
	"math"
)

// MaxMercatorLat is the latitude at which spherical Mercator maps to a square.
const MaxMercatorLat = 85.05112878

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate reports whether the point lies on the globe.
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return fmt.Errorf("%w: non-finite coordinate", ErrInvalidInput)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range", ErrInvalidInput, p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: longitude %f out of range", ErrInvalidInput, p.Lon)
	}
	return nil
}

// ClampMercator returns the point with its latitude limited to the
// Mercator-safe band.
func (p GeoPoint) ClampMercator() GeoPoint {
	p.Lat = math.Max(-MaxMercatorLat, math.Min(MaxMercatorLat, p.Lat))
	return p
}

func (p GeoPoint) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
}

// GeoLineString represents an ordered sequence of geographic coordinates.
type GeoLineString struct {
	Coordinates []GeoPoint `json:"coordinates"`
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether p lies inside the box, edges included.
func (b Bounds) Contains(p GeoPoint) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// Extend returns the smallest box holding both b and o. The zero Bounds
// is treated as empty.
func (b Bounds) Extend(o Bounds) Bounds {
	if b == (Bounds{}) {
		return o
	}
	return Bounds{
		MinLat: min(b.MinLat, o.MinLat),
		MinLon: min(b.MinLon, o.MinLon),
		MaxLat: max(b.MaxLat, o.MaxLat),
		MaxLon: max(b.MaxLon, o.MaxLon),
	}
}
