package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level maps "debug", "warn" and "error" to slog levels. Anything else
// is info.
func Level(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger writing to w. format is "text" or "json" (default).
// Every record carries the service name.
func New(w io.Writer, service, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: Level(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	log := slog.New(handler)
	if service != "" {
		log = log.With("service", service)
	}
	return log
}

// Setup installs the default logger from LOG_LEVEL and LOG_FORMAT,
// falling back to info and defaultFormat.
func Setup(service, defaultFormat string) *slog.Logger {
	format := os.Getenv("LOG_FORMAT")
	if format == "" {
		format = defaultFormat
	}
	log := New(os.Stdout, service, os.Getenv("LOG_LEVEL"), format)
	slog.SetDefault(log)
	return log
}
