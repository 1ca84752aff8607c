package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level reads LOG_LEVEL (debug, info, warn or error). Anything else is info.
func Level() slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))) {
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

func options(level slog.Level) *slog.HandlerOptions {
	// Source locations only pay off when debugging.
	return &slog.HandlerOptions{Level: level, AddSource: level <= slog.LevelDebug}
}

// NewLogger returns the worker's JSON logger on stdout.
func NewLogger() *slog.Logger {
	return newJSONLogger(os.Stdout, Level())
}

// NewTextLogger returns a human-readable logger on stderr. It is used by the
// CLI, whose stdout carries command output.
func NewTextLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, options(Level())))
}

func newJSONLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, options(level)))
}

type contextKey struct{}

var runIDKey contextKey

// ContextWithRunID stores the id of the reconciliation run in the context.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext returns the run id stored in the context, or "".
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// WithRunID adds the context's run id to logger, so every entry of one
// reconciliation run can be grepped together.
func WithRunID(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id := RunIDFromContext(ctx); id != "" {
		return logger.With(slog.String("run_id", id))
	}
	return logger
}

// WithWorkspace scopes logger to one workspace.
func WithWorkspace(logger *slog.Logger, workspaceID string) *slog.Logger {
	return logger.With(slog.String("workspace_id", workspaceID))
}
