package domain

import "errors"

var (
	// ErrInvalidInput is returned for coordinates or parameters the
	// projection cannot represent.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSuperseded is returned to a rebuild that was replaced by a newer one.
	ErrSuperseded = errors.New("rebuild superseded")

	// ErrClosed is returned by components used after Close.
	ErrClosed = errors.New("closed")

	// ErrTileNotFound means the tile has no content upstream.
	ErrTileNotFound = errors.New("tile not found")

	// ErrCacheMiss is returned by caches for absent keys.
	ErrCacheMiss = errors.New("cache miss")

	// ErrUpstream means the tile origin answered with an unusable status.
	ErrUpstream = errors.New("upstream error")

	// ErrLocationUnavailable means no position could be obtained.
	ErrLocationUnavailable = errors.New("location unavailable")
)
