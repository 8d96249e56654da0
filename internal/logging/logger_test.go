package logging

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

func TestNewWritesConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.File = filepath.Join(dir, "logs", "linewatch.log")

	var console bytes.Buffer
	logger, err := New(cfg, zapcore.AddSync(&console))
	require.NoError(t, err)

	logger.Named("loop").Info("Green lines detected", zap.Int("iteration", 7))
	logger.Debug("hidden at info")
	require.NoError(t, logger.Sync())

	assert.Contains(t, console.String(), "INFO")
	assert.Contains(t, console.String(), "linewatch.loop")
	assert.NotContains(t, console.String(), "hidden at info")

	data, err := os.ReadFile(cfg.File)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "linewatch.loop", entry["logger"])
	assert.Equal(t, "Green lines detected", entry["msg"])
	assert.EqualValues(t, 7, entry["iteration"])
}

func TestNewRejectsBadLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "loud"
	cfg.File = ""
	_, err := New(cfg, zapcore.AddSync(&bytes.Buffer{}))
	assert.Error(t, err)
}

func TestNewWithoutOutputs(t *testing.T) {
	logger, err := New(Config{Level: "debug"}, nil)
	require.NoError(t, err)
	assert.NotPanics(t, func() { logger.Info("dropped") })
}

func TestHistoryRetainsNewest(t *testing.T) {
	history := NewHistory(3, zap.InfoLevel)
	cfg := Config{Level: "debug", ServiceName: "linewatch"}
	logger, err := New(cfg, nil, history.Core())
	require.NoError(t, err)

	capture := logger.Named("capture").With(zap.String("device", "emulator-5554"))
	capture.Debug("not retained")
	for _, msg := range []string{"one", "two", "three", "four"} {
		capture.Info(msg)
	}

	entries := history.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "two", entries[0].Message)
	assert.Equal(t, "four", entries[2].Message)
	assert.Equal(t, "linewatch.capture", entries[2].Component)
	assert.Equal(t, "emulator-5554", entries[2].Fields["device"])

	history.Clear()
	assert.Equal(t, 0, history.Len())
}
