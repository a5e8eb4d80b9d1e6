package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/paulkoehlerdev/spillway/pkg/libraries/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestBuild_Component(t *testing.T) {
	var buf bytes.Buffer
	zl := logger.Build(logger.Config{Level: "info", Component: "spillway"}, &buf)

	zl.Info().Msg("hello")

	line := decode(t, &buf)
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "spillway", line["component"])
	assert.Contains(t, line, "timestamp")
}

func TestBuild_Level(t *testing.T) {
	var buf bytes.Buffer
	zl := logger.Build(logger.Config{Level: "warn"}, &buf)

	zl.Info().Msg("dropped")
	assert.Zero(t, buf.Len())
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	zl := logger.Build(logger.Config{}, &buf)

	ctx := logger.WithRequestID(context.Background(), "abc")
	ctx = logger.WithLayer(ctx, "locations")
	logger.FromContext(ctx, &zl).Info().Msg("tile")

	line := decode(t, &buf)
	assert.Equal(t, "abc", line["request_id"])
	assert.Equal(t, "locations", line["layer"])
}

func TestWithRequestID_Generates(t *testing.T) {
	ctx := logger.WithRequestID(context.Background(), "")
	assert.Len(t, logger.RequestID(ctx), 16)
}

func TestNewSlog(t *testing.T) {
	var buf bytes.Buffer
	zl := logger.Build(logger.Config{Level: "debug"}, &buf)
	log := logger.NewSlog(&zl)

	ctx := logger.WithRequestID(context.Background(), "req-1")
	log.With("layer", "roads").WithGroup("tile").ErrorContext(ctx, "failed", "z", 3, "err", errors.New("boom"))

	line := decode(t, &buf)
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "roads", line["layer"])
	assert.Equal(t, float64(3), line["tile.z"])
	assert.Equal(t, "boom", line["tile.err"])
}

func TestNewSlog_Enabled(t *testing.T) {
	var buf bytes.Buffer
	zl := logger.Build(logger.Config{Level: "error"}, &buf)
	log := logger.NewSlog(&zl)

	log.Info("dropped")
	assert.Zero(t, buf.Len())
}
