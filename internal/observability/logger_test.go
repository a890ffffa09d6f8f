package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_JSONConsole(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(LogConfig{Level: "debug", Format: "json"}, zapcore.AddSync(&buf))
	log.Debug("evaluated", zap.String("agent", "A1"))
	require.NoError(t, log.Sync())

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "DEBUG", line["level"])
	assert.Equal(t, "autoequip", line["logger"])
	assert.Equal(t, "A1", line["agent"])
}

func TestNewLogger_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(LogConfig{Level: "loud"}, zapcore.AddSync(&buf))
	log.Debug("hidden")
	log.Info("shown")
	_ = log.Sync()
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	var buf bytes.Buffer
	log := NewLogger(LogConfig{Level: "info", Format: "console", File: path, MaxSizeMB: 1}, zapcore.AddSync(&buf))
	log.Info("to both")
	require.NoError(t, log.Sync())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), `"msg":"to both"`), string(b))
	assert.Contains(t, buf.String(), "to both")
}
