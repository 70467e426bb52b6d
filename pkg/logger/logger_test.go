package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextFieldsAndSource(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { current.Store(prev); slog.SetDefault(prev) })

	var buf bytes.Buffer
	InitWithWriter(&buf, "debug", "text")

	ctx := WithContext(context.Background(), NovelIDKey, "n1")
	ctx = WithContext(ctx, RangeKey, "[1..5]")
	Info(ctx, "chunk done", "written", 5)
	Error(ctx, "chunk failed", errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "novel_id=n1")
	assert.Contains(t, out, "range=[1..5]")
	assert.Contains(t, out, "written=5")
	assert.Contains(t, out, "error=boom")
	assert.Contains(t, out, "logger_test.go")
	assert.NotContains(t, out, "logger/logger.go")
}

func TestLevelFiltering(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { current.Store(prev); slog.SetDefault(prev) })

	var buf bytes.Buffer
	InitWithWriter(&buf, "warn", "json")
	Info(context.Background(), "hidden")
	Warn(context.Background(), "shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestValue(t *testing.T) {
	ctx := WithContext(context.Background(), RequestIDKey, "req-1")
	assert.Equal(t, "req-1", Value(ctx, RequestIDKey))
	assert.Empty(t, Value(ctx, JobIDKey))
}
