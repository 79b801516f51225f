// Package logging builds the process logger and carries request-scoped
// loggers through context values.
//
// Environment variables:
//
//	LOG_LEVEL   = debug | info | warn | error  (default: info)
//	LOG_FORMAT  = json | text                  (default: json)
//	LOG_SOURCE  = true                         (adds file:line to records)
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/54b3r/docchat-go/internal/version"
)

// contextKey is an unexported type for context keys in this package.
type contextKey struct{}

// Options selects the handler settings.
type Options struct {
	Level  slog.Level
	Format string
	Source bool
}

// OptionsFromEnv reads LOG_LEVEL, LOG_FORMAT and LOG_SOURCE.
func OptionsFromEnv() Options {
	return Options{
		Level:  parseLevel(os.Getenv("LOG_LEVEL")),
		Format: strings.ToLower(os.Getenv("LOG_FORMAT")),
		Source: os.Getenv("LOG_SOURCE") == "true",
	}
}

// New returns the stderr logger configured from the environment. Every
// record carries service and version attributes.
func New() *slog.Logger {
	return NewWithWriter(os.Stderr, OptionsFromEnv())
}

// NewWithWriter returns a logger writing to w.
func NewWithWriter(w io.Writer, o Options) *slog.Logger {
	opts := &slog.HandlerOptions{Level: o.Level, AddSource: o.Source}

	var handler slog.Handler
	if o.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With(
		slog.String("service", "docchat"),
		slog.String("version", version.Version),
	)
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or [slog.Default].
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// parseLevel converts a string to a [slog.Level], defaulting to Info.
func parseLevel(s string) slog.Level {
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
