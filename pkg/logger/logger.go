// Package logger provides structured logging for the forensics engine, the
// HTTP service and the CLI.
//
// Output is JSON when the configured format is "json" (log aggregators) and
// slog's key=value text otherwise.
//
// Usage:
//
//	log := logger.New("info")
//	log.Info("analysis complete", "verdict", "ai", "ai_score", 82)
//
// Output (text):
//
//	time=2025-01-01T00:00:00Z level=INFO msg="analysis complete" verdict=ai ai_score=82
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is a structured logger wrapper.
type Logger struct {
	*slog.Logger
}

// Options configures a Logger.
type Options struct {
	// Level is one of debug, info, warn, error (case-insensitive).
	Level string

	// Format is "json" or "text". Anything else means text.
	Format string

	// Writer defaults to os.Stderr.
	Writer io.Writer
}

// New creates a text Logger on stderr with the specified level.
// Defaults to info if the level is not recognized.
func New(level string) *Logger {
	return NewWithOptions(Options{Level: level})
}

// NewWithWriter creates a text Logger that writes to w.
// Useful for testing or writing to files.
func NewWithWriter(level string, w io.Writer) *Logger {
	return NewWithOptions(Options{Level: level, Writer: w})
}

// NewWithOptions creates a Logger from explicit options.
func NewWithOptions(opts Options) *Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	return &Logger{slog.New(handler)}
}

// ParseLevel converts a string level to slog.Level.
// Defaults to Info if the level string is not recognized.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger with the given attributes added.
//
//	frameLog := log.With("frame", 3)
//	frameLog.Warn("frame skipped", "error", err)
func (l *Logger) With(args ...any) *Logger {
	return &Logger{l.Logger.With(args...)}
}

// WithContext returns a Logger carrying the request id found in ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if reqID := ctx.Value(ContextKeyRequestID); reqID != nil {
		return l.With("request_id", reqID)
	}
	return l
}

// ContextKey is the type for context keys to avoid collisions.
type ContextKey string

// ContextKeyRequestID carries the per-request id set by the HTTP middleware.
const ContextKeyRequestID ContextKey = "request_id"

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// NopLogger returns a logger that discards all output.
func NopLogger() *Logger {
	return NewWithWriter("error", io.Discard)
}
