package geolocation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/samirrijal/skycanvas/internal/core/domain"
)

type trackPoint struct {
	point domain.GeoPoint
	at    time.Time
}

// GPXLocator replays a recorded track. When every point carries a
// timestamp the track is played back in real time, interpolating between
// points; otherwise each Locate call advances one point. Playback stops
// at the last point.
type GPXLocator struct {
	points []trackPoint
	timed  bool
	now    func() time.Time

	mu    sync.Mutex
	start time.Time
	next  int
}

// LoadGPX reads a track from a .gpx file.
func LoadGPX(path string) (*GPXLocator, error) {
	g, err := gpx.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse gpx %s: %w", path, err)
	}
	return newGPXLocator(g)
}

// ParseGPX reads a track from GPX bytes.
func ParseGPX(data []byte) (*GPXLocator, error) {
	g, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse gpx: %w", err)
	}
	return newGPXLocator(g)
}

func newGPXLocator(g *gpx.GPX) (*GPXLocator, error) {
	var pts []trackPoint
	for _, trk := range g.Tracks {
		for _, seg := range trk.Segments {
			for _, p := range seg.Points {
				pts = append(pts, trackPoint{point: domain.GeoPoint{Lat: p.Latitude, Lon: p.Longitude}, at: p.Timestamp})
			}
		}
	}
	if len(pts) == 0 {
		for _, p := range g.Waypoints {
			pts = append(pts, trackPoint{point: domain.GeoPoint{Lat: p.Latitude, Lon: p.Longitude}, at: p.Timestamp})
		}
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("gpx has no points: %w", domain.ErrInvalidInput)
	}

	timed := true
	for i, p := range pts {
		if err := p.point.Validate(); err != nil {
			return nil, fmt.Errorf("gpx point %d: %w", i, err)
		}
		if p.at.IsZero() || (i > 0 && p.at.Before(pts[i-1].at)) {
			timed = false
		}
	}

	return &GPXLocator{points: pts, timed: timed, now: time.Now}, nil
}

// Len returns the number of track points.
func (l *GPXLocator) Len() int { return len(l.points) }

// Track returns the replayed path.
func (l *GPXLocator) Track() domain.GeoLineString {
	out := domain.GeoLineString{Coordinates: make([]domain.GeoPoint, len(l.points))}
	for i, p := range l.points {
		out.Coordinates[i] = p.point
	}
	return out
}

// Locate implements ports.Locator.
func (l *GPXLocator) Locate(ctx context.Context, _ domain.LocateOptions) (domain.Fix, error) {
	if err := ctx.Err(); err != nil {
		return domain.Fix{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if !l.timed {
		p := l.points[min(l.next, len(l.points)-1)]
		if l.next < len(l.points) {
			l.next++
		}
		return domain.Fix{Point: p.point, AccuracyMeters: 5, Timestamp: now}, nil
	}

	if l.start.IsZero() {
		l.start = now
	}
	at := l.points[0].at.Add(now.Sub(l.start))
	return domain.Fix{Point: l.positionAt(at), AccuracyMeters: 5, Timestamp: now}, nil
}

func (l *GPXLocator) positionAt(at time.Time) domain.GeoPoint {
	last := l.points[len(l.points)-1]
	if !at.Before(last.at) {
		return last.point
	}
	for i := 1; i < len(l.points); i++ {
		a, b := l.points[i-1], l.points[i]
		if at.Before(b.at) {
			span := b.at.Sub(a.at)
			if span <= 0 {
				return b.point
			}
			f := float64(at.Sub(a.at)) / float64(span)
			return domain.GeoPoint{
				Lat: a.point.Lat + (b.point.Lat-a.point.Lat)*f,
				Lon: a.point.Lon + (b.point.Lon-a.point.Lon)*f,
			}
		}
	}
	return last.point
}
