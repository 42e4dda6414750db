package telemetry

// Span and attribute names used for tracing.
const (
	SpanUpstreamFetch = "tileproxy.upstream_fetch"
	SpanRevalidate    = "tileproxy.revalidate"

	AttrTileX      = "tile.x"
	AttrTileY      = "tile.y"
	AttrHTTPStatus = "http.status_code"
	AttrCacheState = "cache.state"
)
