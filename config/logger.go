package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns a logger writing to stdout, configured from GO_ENV and LOG_LEVEL.
func NewLogger() *slog.Logger {
	return newLogger(os.Stdout, getenv("GO_ENV", "development"), os.Getenv("LOG_LEVEL"))
}

// newLogger uses the JSON handler in production and the text handler elsewhere.
// level is one of debug, info, warn, error; anything else means info.
func newLogger(w io.Writer, env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if env == "production" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
