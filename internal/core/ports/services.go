package ports

import (
	"context"
	"image"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/samirrijal/skycanvas/internal/core/domain"
)

// TileFetcher loads a tile texture from the tile server.
type TileFetcher interface {
	Fetch(ctx context.Context, tile domain.TileIndex) (image.Image, error)
}

// TileRefreshPort is how position producers ask for a new grid.
type TileRefreshPort interface {
	Refresh(ctx context.Context, p domain.GeoPoint) error
}

// Locator answers single-shot position queries.
type Locator interface {
	Locate(ctx context.Context, opts domain.LocateOptions) (domain.Fix, error)
}

// OrientationSource exposes the most recent raw orientation reading.
// ok is false when no sensor data has arrived yet.
type OrientationSource interface {
	Latest() (sample domain.OrientationSample, ok bool)
}

// Notifier surfaces one-off messages to the user.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// Plane is one textured quad in the scene graph.
type Plane interface {
	SetPosition(pos domain.Vec3)
	SetTexture(img image.Image)
	SetOpacity(alpha float64)
	SetFade(f domain.Fade)
	SetVisible(visible bool)
	// Dispose releases the plane's GPU resources and removes it from the scene.
	Dispose()
}

// Scene creates planes and owns the camera.
type Scene interface {
	NewPlane(size float64) Plane
	SetCameraRotation(q mgl64.Quat)
	// Batch runs fn so that no frame is rendered while it executes.
	Batch(fn func())
}

// Renderer draws one frame of the scene.
type Renderer interface {
	Render(ctx context.Context) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
