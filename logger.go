package objalloc

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with allocator-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithID adds an id field to the logger.
func (l *Logger) WithID(id uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("id", id),
	}
}

// WithSpan adds span and unit fields to the logger.
func (l *Logger) WithSpan(span, unit any) *Logger {
	return &Logger{
		Logger: l.Logger.With("span", span, "unit", unit),
	}
}

func (l *Logger) debugEnabled() bool {
	return l.Enabled(context.Background(), slog.LevelDebug)
}

// LogInsert logs an insert attempt.
func (l *Logger) LogInsert(id uint64, value any, err error) {
	if !l.debugEnabled() {
		return
	}
	if err != nil {
		l.Debug("insert rejected",
			"value", value,
			"error", err,
		)
	} else {
		l.Debug("insert completed",
			"id", id,
			"value", value,
		)
	}
}

// LogRemove logs a remove operation.
func (l *Logger) LogRemove(id uint64, found bool) {
	if !l.debugEnabled() {
		return
	}
	l.Debug("remove completed",
		"id", id,
		"found", found,
	)
}

// LogModify logs a modify operation.
func (l *Logger) LogModify(id uint64, from, to any, err error) {
	if !l.debugEnabled() {
		return
	}
	if err != nil {
		l.Debug("modify failed",
			"id", id,
			"from", from,
			"error", err,
		)
	} else {
		l.Debug("modify completed",
			"id", id,
			"from", from,
			"to", to,
		)
	}
}

// LogExtend logs a bulk insert.
func (l *Logger) LogExtend(count, failed int) {
	if failed > 0 {
		l.Warn("extend completed with failures",
			"total", count,
			"failed", failed,
			"success", count-failed,
		)
	} else if l.debugEnabled() {
		l.Debug("extend completed",
			"count", count,
		)
	}
}

// LogDecode logs a deserialization.
func (l *Logger) LogDecode(codecName string, records int, err error) {
	if err != nil {
		l.Error("decode failed",
			"codec", codecName,
			"error", err,
		)
	} else {
		l.Info("decode completed",
			"codec", codecName,
			"records", records,
		)
	}
}

// LogViolation logs a consistency violation. The caller panics afterwards.
func (l *Logger) LogViolation(v *ConsistencyViolation) {
	l.Error("consistency violation",
		"op", v.Op,
		"id", v.ID,
		"detail", v.Detail,
	)
}
