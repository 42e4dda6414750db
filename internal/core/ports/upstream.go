package ports

import (
	"context"

	"github.com/samirrijal/skycanvas/internal/core/domain"
)

// UpstreamTile is a raw tile response from the canvas origin.
type UpstreamTile struct {
	Status      int
	ContentType string
	Body        []byte
}

// TileOrigin fetches raw tile bytes for the proxy.
type TileOrigin interface {
	FetchTile(ctx context.Context, tile domain.TileIndex) (*UpstreamTile, error)
}
