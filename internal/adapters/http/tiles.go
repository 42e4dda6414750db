package http

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/skycanvas/internal/core/domain"
)

// TileHandler serves GET /files/s0/tiles/:x/:file where file is "{y}.png".
// Query parameters (cache busters) are ignored.
func TileHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Tiles == nil {
			return errInternal(c, "tile service not configured")
		}
		x, err := strconv.Atoi(c.Params("x"))
		if err != nil {
			return errBadRequest(c, "x must be an integer")
		}
		name, ok := strings.CutSuffix(c.Params("file"), ".png")
		if !ok {
			return errNotFound(c, "tiles are served as .png")
		}
		y, err := strconv.Atoi(name)
		if err != nil {
			return errBadRequest(c, "y must be an integer")
		}

		tile := domain.TileIndex{X: x, Y: y, Zoom: deps.Zoom}
		res, err := deps.Tiles.GetTile(c.UserContext(), tile)
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			return errBadRequest(c, err.Error())
		case err != nil:
			LoggerFromCtx(c.UserContext()).Warn("tile unavailable", "tile", tile, "error", err)
			if errors.Is(err, domain.ErrUpstream) {
				return errBadGateway(c, "tile origin returned an error")
			}
			return errBadGateway(c, "tile origin unreachable")
		}

		c.Set("X-Cache", string(res.State))
		c.Set(fiber.HeaderCacheControl, deps.tileCacheControl())

		if res.NotFound() {
			return errNotFound(c, "tile has no content")
		}

		ct := res.ContentType
		if ct == "" {
			ct = "image/png"
		}
		c.Set(fiber.HeaderContentType, ct)
		return c.Send(res.Body)
	}
}
