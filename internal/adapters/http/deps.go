package http

import (
	"context"
	"fmt"
	"time"

	"github.com/samirrijal/skycanvas/internal/core/usecases"
)

// Pinger is a backing service that can report its health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Tiles *usecases.TileProxyService
	Cache Pinger // nil when the proxy runs without a shared cache
	Zoom  int
	Fresh time.Duration
	Stale time.Duration
}

// tileCacheControl tells browsers and CDNs how long a tile may be reused.
func (d *Dependencies) tileCacheControl() string {
	return fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d",
		int(d.Fresh.Seconds()), int(d.Stale.Seconds()))
}
