package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestProductionLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := build("info", false, zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("query finished", zap.Int("series", 3))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "query finished", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, float64(3), entry["series"])
}

func TestDevelopmentLoggerUsesConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := build("debug", true, zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Debug("cursor opened")
	assert.Contains(t, buf.String(), "cursor opened")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestInvalidLevel(t *testing.T) {
	_, err := New("verbose", false)
	assert.Error(t, err)
}
