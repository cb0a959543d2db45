package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type ctxKey struct{}

// Logger wraps slog.Logger so commands can build one handler and share it.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing to stdout. format can be "json" or "text"
// (default is json).
func New(level slog.Level, format string) *Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter creates a Logger writing to w. Debug level adds source
// locations.
func NewWithWriter(w io.Writer, level slog.Level, format string) *Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return &Logger{Logger: slog.New(handler)}
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// With returns a new logger with the given attributes added.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithBatchID stores a batch (or request) ID in ctx for log correlation.
func WithBatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// BatchIDFrom returns the batch ID stored in ctx, if any.
func BatchIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// FromContext decorates base with the batch ID carried by ctx.
func FromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	if id := BatchIDFrom(ctx); id != "" {
		return base.With(BatchID(id))
	}
	return base
}

// ParseLevel converts "debug", "info", "warn" or "error" (any case) to a
// slog.Level. Anything else is info.
func ParseLevel(level string) slog.Level {
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

// SetDefault installs l as slog.Default, which also redirects the log package.
func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}
