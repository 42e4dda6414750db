package geolocation

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/samirrijal/skycanvas/internal/core/domain"
)

const timedTrack = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk><trkseg>
    <trkpt lat="43.2630" lon="-2.9350"><time>2024-05-01T10:00:00Z</time></trkpt>
    <trkpt lat="43.2640" lon="-2.9350"><time>2024-05-01T10:00:10Z</time></trkpt>
    <trkpt lat="43.2640" lon="-2.9330"><time>2024-05-01T10:00:20Z</time></trkpt>
  </trkseg></trk>
</gpx>`

const untimedRoute = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <wpt lat="43.6426" lon="-79.3871"></wpt>
  <wpt lat="43.6430" lon="-79.3871"></wpt>
</gpx>`

func TestGPXLocator_TimedReplay(t *testing.T) {
	l, err := ParseGPX([]byte(timedTrack))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Len() != 3 || !l.timed {
		t.Fatalf("expected 3 timed points, got %d timed=%v", l.Len(), l.timed)
	}

	now := time.Unix(1700000000, 0)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	fix, err := l.Locate(ctx, domain.LocateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if fix.Point != (domain.GeoPoint{Lat: 43.2630, Lon: -2.9350}) {
		t.Errorf("expected first point, got %s", fix.Point)
	}

	now = now.Add(5 * time.Second)
	fix, _ = l.Locate(ctx, domain.LocateOptions{})
	if math.Abs(fix.Point.Lat-43.2635) > 1e-9 {
		t.Errorf("expected interpolated lat 43.2635, got %f", fix.Point.Lat)
	}

	now = now.Add(time.Hour)
	fix, _ = l.Locate(ctx, domain.LocateOptions{})
	if fix.Point != (domain.GeoPoint{Lat: 43.2640, Lon: -2.9330}) {
		t.Errorf("expected replay to stop at the last point, got %s", fix.Point)
	}
}

func TestGPXLocator_StepReplay(t *testing.T) {
	l, err := ParseGPX([]byte(untimedRoute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.timed {
		t.Fatal("expected waypoints without time to step")
	}

	want := []float64{43.6426, 43.6430, 43.6430}
	for i, lat := range want {
		fix, err := l.Locate(context.Background(), domain.LocateOptions{})
		if err != nil {
			t.Fatal(err)
		}
		if fix.Point.Lat != lat {
			t.Errorf("call %d: expected lat %f, got %f", i, lat, fix.Point.Lat)
		}
	}
	if got := len(l.Track().Coordinates); got != 2 {
		t.Errorf("expected 2 track coordinates, got %d", got)
	}
}

func TestParseGPX_Invalid(t *testing.T) {
	if _, err := ParseGPX([]byte("<gpx></gpx>")); err == nil {
		t.Error("expected error for empty gpx")
	}
	if _, err := ParseGPX([]byte("not xml")); err == nil {
		t.Error("expected parse error")
	}
}

func TestLocators(t *testing.T) {
	ctx := context.Background()

	s := Static{Point: domain.GeoPoint{Lat: 1, Lon: 2}, Accuracy: 10}
	fix, err := s.Locate(ctx, domain.LocateOptions{})
	if err != nil || fix.Point.Lat != 1 || fix.AccuracyMeters != 10 {
		t.Errorf("unexpected static fix %+v, %v", fix, err)
	}

	if _, err := (Unavailable{}).Locate(ctx, domain.LocateOptions{}); !errors.Is(err, domain.ErrLocationUnavailable) {
		t.Errorf("expected ErrLocationUnavailable, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := s.Locate(cancelled, domain.LocateOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
