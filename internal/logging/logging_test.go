package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNewStructuredLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(&buf, "json", slog.LevelInfo)
	logger.Info("hello", "component", "test")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "test", entry["component"])
}

func TestNewStructuredLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(&buf, "TEXT", slog.LevelInfo)
	logger.Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestNewStructuredLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(&buf, "json", slog.LevelWarn)
	logger.Info("dropped")
	assert.Empty(t, buf.String())
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(&buf, "json", slog.LevelInfo)
	LogError(logger, "poll failed", errors.New("boom"), slog.String("component", "snapshot_sync"))

	entry := decodeLine(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "snapshot_sync", entry["component"])

	assert.NotPanics(t, func() { LogError(nil, "x", errors.New("y")) })
}

func TestLogOperation_SkipsZeroDuration(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(&buf, "json", slog.LevelInfo)
	LogOperation(logger, "fetched", slog.Duration("duration", 0), slog.Int("vehicles", 3))

	entry := decodeLine(t, &buf)
	_, hasDuration := entry["duration"]
	assert.False(t, hasDuration)
	assert.EqualValues(t, 3, entry["vehicles"])
}

func TestLogOperation_KeepsDuration(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(&buf, "json", slog.LevelInfo)
	LogOperation(logger, "fetched", slog.Duration("duration", 2*time.Second))

	entry := decodeLine(t, &buf)
	_, hasDuration := entry["duration"]
	assert.True(t, hasDuration)
}

func TestLogHTTPRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(&buf, "json", slog.LevelInfo)
	LogHTTPRequest(logger, "GET", "/api/view", 200, 1.5, slog.String("request_id", "abc"))

	entry := decodeLine(t, &buf)
	assert.Equal(t, "http_request", entry["msg"])
	assert.Equal(t, "/api/view", entry["path"])
	assert.EqualValues(t, 200, entry["status"])
	assert.Equal(t, "abc", entry["request_id"])
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(&buf, "json", slog.LevelInfo)

	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}

type failingCloser struct{}

func (failingCloser) Close() error { return errors.New("close failed") }

func TestSafeCloseWithLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(&buf, "json", slog.LevelInfo)

	SafeCloseWithLogging(failingCloser{}, logger, "http_response_body")
	assert.True(t, strings.Contains(buf.String(), "close failed"))

	assert.NotPanics(t, func() { SafeCloseWithLogging(nil, logger, "nothing") })
}
