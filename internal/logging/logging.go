// Package logging builds the process-wide slog.Logger. Every component
// receives the logger through its constructor; nothing writes through the
// slog default.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns a logger tagged with the service name and environment.
// Dev and test emit human-readable text; everything else emits JSON for
// log shippers.
func NewLogger(level, serviceName, env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	switch env {
	case "dev", "test":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler).With(
		slog.String("service", serviceName),
		slog.String("env", env),
	)
}

// parseLevel maps the configured level string. An unknown value falls back
// to info rather than failing startup.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
