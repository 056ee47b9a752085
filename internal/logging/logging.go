// Package logging provides a structured logger built on [log/slog].
// It is configured once at startup via [New] and distributed through
// context values using [WithLogger] / [FromContext].
//
// Environment variables:
//
//	LOG_LEVEL  = debug | info | warn | error  (default: info)
//	LOG_FORMAT = json | text                  (default: json)
//	LOG_SOURCE = true                         (adds file:line to each record)
//
// Every record carries service=ragdesk so logs from the CLI and the server
// can be filtered together.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// serviceName is attached to every record.
const serviceName = "ragdesk"

// contextKey is an unexported type for context keys in this package.
type contextKey struct{}

// Options selects the handler built by [NewWithOptions].
type Options struct {
	// Level is the minimum severity.
	Level slog.Level
	// Text selects the human-readable handler instead of JSON.
	Text bool
	// AddSource adds the caller's file and line.
	AddSource bool
}

// OptionsFromEnv reads LOG_LEVEL, LOG_FORMAT and LOG_SOURCE.
func OptionsFromEnv() Options {
	addSource, _ := strconv.ParseBool(os.Getenv("LOG_SOURCE"))
	return Options{
		Level:     parseLevel(os.Getenv("LOG_LEVEL")),
		Text:      strings.EqualFold(strings.TrimSpace(os.Getenv("LOG_FORMAT")), "text"),
		AddSource: addSource,
	}
}

// New constructs a [*slog.Logger] writing to stderr, configured from the
// environment.
func New() *slog.Logger {
	return NewWithOptions(os.Stderr, OptionsFromEnv())
}

// NewWithOptions constructs a logger writing to w.
func NewWithOptions(w io.Writer, opts Options) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: opts.Level, AddSource: opts.AddSource}

	var handler slog.Handler
	if opts.Text {
		handler = slog.NewTextHandler(w, hopts)
	} else {
		handler = slog.NewJSONHandler(w, hopts)
	}

	return slog.New(handler).With(slog.String("service", serviceName))
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the [*slog.Logger] stored in ctx, or [slog.Default].
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}
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
