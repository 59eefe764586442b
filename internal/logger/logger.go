// internal/logger/logger.go
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a JSON structured logger on stdout.
// level is one of debug, info, warn, error; DEBUG=true forces debug.
func New(level string) *slog.Logger {
	return NewWriter(os.Stdout, level)
}

// NewWriter is New with an explicit destination.
func NewWriter(w io.Writer, level string) *slog.Logger {
	lvl := ParseLevel(level)
	if os.Getenv("DEBUG") == "true" {
		lvl = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug, // source file/line in debug mode
	})
	return slog.New(handler)
}

// ParseLevel maps a config level name to a slog level. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
