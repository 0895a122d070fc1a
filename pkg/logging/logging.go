// Package logging configures structured logging for the chat binaries.
//
// Usage:
//
//	logging.Setup()                               // level from LOG_LEVEL env
//	logging.SetupWithLevel(slog.LevelDebug)       // explicit level override
//	logging.Configure(logging.Options{Format: "json"})
//
// Environment variables:
//
//	LOG_LEVEL: debug, info, warn, error (default: info)
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Options controls how the default logger is built.
type Options struct {
	// Level is one of debug, info, warn, error. Empty falls back to LOG_LEVEL.
	Level string

	// Format is "text" (colored tint output) or "json".
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// Setup configures colored logging at the level specified by LOG_LEVEL env var
// (default: INFO).
func Setup() {
	SetupWithLevel(levelFromEnv())
}

// SetupWithLevel configures colored logging at the given level.
func SetupWithLevel(level slog.Level) {
	slog.SetDefault(slog.New(newTextHandler(os.Stderr, level)))
}

// Configure installs a default logger built from opts and returns it.
func Configure(opts Options) *slog.Logger {
	level := levelFromEnv()
	if opts.Level != "" {
		level = ParseLevel(opts.Level)
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "json":
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	default:
		handler = newTextHandler(out, level)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func newTextHandler(w io.Writer, level slog.Level) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  true,
	})
}

func levelFromEnv() slog.Level {
	return ParseLevel(os.Getenv("LOG_LEVEL"))
}
