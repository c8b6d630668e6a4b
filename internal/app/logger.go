package app

import (
	"io"
	"log/slog"
)

// newLogger builds the launcher's logger from an already-validated config:
// NewConfig guarantees level is one of debug/info/warn/error and format is
// text or json, so there is no fallback path here. Every run gets its own
// instance so batch output and log records share one writer without touching
// the global logger.
func newLogger(level, format string, outW io.Writer) *slog.Logger {
	// info is slog.Level's zero value.
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: slogLevel}
	if format == "text" {
		return slog.New(slog.NewTextHandler(outW, opts))
	}
	return slog.New(slog.NewJSONHandler(outW, opts))
}
