package memgo

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with memgo-specific context.
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
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithUser adds a user field to the logger.
func (l *Logger) WithUser(userID string) *Logger {
	return &Logger{
		Logger: l.Logger.With("user", userID),
	}
}

// LogAdd logs an add operation.
func (l *Logger) LogAdd(ctx context.Context, userID, id string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "add failed",
			"user", userID,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "add completed",
			"user", userID,
			"id", id,
		)
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, userID string, topK, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"user", userID,
			"top_k", topK,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"user", userID,
			"top_k", topK,
			"results", resultsFound,
		)
	}
}

// LogUpdate logs an update operation.
func (l *Logger) LogUpdate(ctx context.Context, userID, id string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "update failed",
			"user", userID,
			"id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "update completed",
			"user", userID,
			"id", id,
		)
	}
}

// LogDelete logs a delete operation.
func (l *Logger) LogDelete(ctx context.Context, userID, id string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"user", userID,
			"id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"user", userID,
			"id", id,
		)
	}
}

// LogPersist logs a persist operation.
func (l *Logger) LogPersist(ctx context.Context, userID, blobName string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "persist failed",
			"user", userID,
			"blob", blobName,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "store persisted",
			"user", userID,
			"blob", blobName,
		)
	}
}

// LogLoad logs a store load operation.
func (l *Logger) LogLoad(ctx context.Context, userID string, count int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"user", userID,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "store loaded",
			"user", userID,
			"count", count,
		)
	}
}
