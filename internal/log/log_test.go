package log

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerFromContextFallsBackToDefault(t *testing.T) {
	assert.Equal(t, slog.Default(), LoggerFromContext(context.Background()))
}

func TestLoggerRoundTripsThroughContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil)).With(slog.String("account", "shop1"))
	ctx := ContextWithLogger(context.Background(), logger)

	LoggerFromContext(ctx).Info("hello")

	assert.Contains(t, buf.String(), "account=shop1")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestLevelFollowsDebugFlag(t *testing.T) {
	defer func() { Debug = false }()

	Debug = false
	assert.Equal(t, slog.LevelInfo, level())
	Debug = true
	assert.Equal(t, slog.LevelDebug, level())
}
