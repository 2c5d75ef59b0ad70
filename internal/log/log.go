// Package log holds the process-wide logging setup. Loggers travel through
// a context so that a workflow run can carry its account and run id into
// every package it calls.
package log

import (
	"context"
	"log/slog"
	"os"
)

type ctxKey struct{}

var loggerCtxKey = ctxKey{}

// Debug switches the default logger to debug level and makes the browser
// layer keep additional artifacts (html dumps next to screenshots).
var Debug bool

func level() slog.Level {
	if Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func InitializeDefaultLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level()}))
	slog.SetDefault(logger)
}

func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey, logger)
}

func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerCtxKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
