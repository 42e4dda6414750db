// Package tilehttp loads canvas tile textures over HTTP.
package tilehttp

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	xdraw "golang.org/x/image/draw"

	"github.com/samirrijal/skycanvas/internal/core/domain"
)

// Config configures the fetcher.
type Config struct {
	BaseURL    string
	Resolution int // output texture size in pixels, 0 keeps the source size
	Retries    int
	UserAgent  string
}

// Fetcher implements ports.TileFetcher against the canvas tile server.
type Fetcher struct {
	client *http.Client
	cfg    Config
	now    func() time.Time
	log    *slog.Logger
}

// New creates a fetcher. A nil client uses http.DefaultClient.
func New(client *http.Client, cfg Config, log *slog.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "skycanvas/1.0"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Fetcher{client: client, cfg: cfg, now: time.Now, log: log.With("component", "tilehttp")}
}

// URL returns the address of a tile. The t parameter defeats browser and
// CDN caches so every fetch sees the current canvas.
func (f *Fetcher) URL(tile domain.TileIndex) string {
	return fmt.Sprintf("%s/files/s0/tiles/%d/%d.png?t=%d", f.cfg.BaseURL, tile.X, tile.Y, f.now().UnixMilli())
}

// Fetch downloads and decodes one tile. Server errors and network errors
// are retried with exponential backoff until ctx expires; a 404 is
// reported as domain.ErrTileNotFound without retrying.
func (f *Fetcher) Fetch(ctx context.Context, tile domain.TileIndex) (image.Image, error) {
	var img image.Image

	op := func() error {
		var err error
		img, err = f.fetchOnce(ctx, tile)
		return err
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(max(0, f.cfg.Retries))),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		f.log.Debug("retrying tile fetch", "tile", tile, "error", err, "wait", wait.String())
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return nil, fmt.Errorf("fetch tile %s: %w", tile, ctxErr)
		}
		return nil, fmt.Errorf("fetch tile %s: %w", tile, err)
	}

	return f.resize(img), nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, tile domain.TileIndex) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL(tile), nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "image/png,image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(domain.ErrTileNotFound)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode: %w", err))
	}
	return img, nil
}

// resize scales img to the configured resolution. Canvas tiles are pixel
// art, so nearest neighbor keeps the pixels crisp.
func (f *Fetcher) resize(img image.Image) image.Image {
	n := f.cfg.Resolution
	b := img.Bounds()
	if n <= 0 || (b.Dx() == n && b.Dy() == n) {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, n, n))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}
