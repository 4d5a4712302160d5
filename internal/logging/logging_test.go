package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicollect5/epicollect5-server-sub003/internal/config"
)

func TestNew_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := New(&config.LogConfig{Level: "warn"}, &buf)
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("upload rejected", "code", "ec5_22", "source", "R1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line), buf.String())
	assert.Equal(t, "upload rejected", line["msg"])
	assert.Equal(t, "ec5_22", line["code"])
	assert.Equal(t, "R1", line["source"])
}

func TestNew_AlsoWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	var buf bytes.Buffer
	logger, closer := New(&config.LogConfig{Level: "debug", File: path, FileMaxSizeMB: 1}, &buf)

	logger.Debug("entry uploaded", "entry_id", "e1")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"entry uploaded"`)
	assert.Equal(t, buf.String(), string(data))
}

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, levelFromString("debug"))
	assert.Equal(t, slog.LevelError, levelFromString("error"))
	assert.Equal(t, slog.LevelInfo, levelFromString("verbose"))
}
