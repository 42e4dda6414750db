// Package geolocation provides ports.Locator implementations for hosts
// without a platform location service.
package geolocation

import (
	"context"
	"time"

	"github.com/samirrijal/skycanvas/internal/core/domain"
)

// Static always reports the same position.
type Static struct {
	Point    domain.GeoPoint
	Accuracy float64
}

func (s Static) Locate(ctx context.Context, _ domain.LocateOptions) (domain.Fix, error) {
	if err := ctx.Err(); err != nil {
		return domain.Fix{}, err
	}
	return domain.Fix{Point: s.Point, AccuracyMeters: s.Accuracy, Timestamp: time.Now()}, nil
}

// Unavailable models a host where location access is denied.
type Unavailable struct{}

func (Unavailable) Locate(ctx context.Context, _ domain.LocateOptions) (domain.Fix, error) {
	return domain.Fix{}, domain.ErrLocationUnavailable
}
