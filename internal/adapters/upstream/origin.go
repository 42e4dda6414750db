// Package upstream fetches raw canvas tiles for the caching proxy.
package upstream

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/skycanvas/internal/core/domain"
	"github.com/samirrijal/skycanvas/internal/core/ports"
	"github.com/samirrijal/skycanvas/internal/pkg/metrics"
	"github.com/samirrijal/skycanvas/internal/pkg/telemetry"
)

// Origin implements ports.TileOrigin with a pooled fasthttp client.
type Origin struct {
	client  *fasthttp.Client
	baseURL string
	timeout time.Duration
}

// New creates an origin for baseURL, e.g. https://backend.wplace.live.
func New(baseURL string, timeout time.Duration) *Origin {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Origin{
		client: &fasthttp.Client{
			Name:                "skycanvas-tileproxy",
			MaxConnsPerHost:     64,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: time.Minute,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

// URL returns the origin address of a tile.
func (o *Origin) URL(tile domain.TileIndex) string {
	return fmt.Sprintf("%s/files/s0/tiles/%d/%d.png", o.baseURL, tile.X, tile.Y)
}

// FetchTile downloads one tile. Any HTTP status is returned as a result;
// only transport failures are errors.
func (o *Origin) FetchTile(ctx context.Context, tile domain.TileIndex) (*ports.UpstreamTile, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanUpstreamFetch)
	defer span.End()
	span.SetAttributes(
		attribute.Int(telemetry.AttrTileX, tile.X),
		attribute.Int(telemetry.AttrTileY, tile.Y),
	)

	deadline := time.Now().Add(o.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(o.URL(tile))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "image/png")

	start := time.Now()
	err := o.client.DoDeadline(req, resp, deadline)
	if err != nil {
		metrics.UpstreamFetchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("upstream %s: %w", tile, ctxErr)
		}
		return nil, fmt.Errorf("upstream %s: %w", tile, err)
	}

	status := resp.StatusCode()
	metrics.UpstreamFetchDuration.WithLabelValues(strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int(telemetry.AttrHTTPStatus, status))

	// resp is released on return, copy what we keep.
	return &ports.UpstreamTile{
		Status:      status,
		ContentType: string(resp.Header.ContentType()),
		Body:        append([]byte(nil), resp.Body()...),
	}, nil
}
