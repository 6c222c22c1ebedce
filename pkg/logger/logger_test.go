package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vixsrc.log")

	log, err := New(Config{Level: "warn", Format: "json", OutputPath: path})
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("Task failed")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "Task failed", entry["msg"])
	assert.Equal(t, "warn", entry["level"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_ConsoleFileHasNoColors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")

	log, err := New(Config{Level: "bogus", Format: "console", OutputPath: path})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("Starting batch")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "INFO")
	assert.Contains(t, string(data), "Starting batch")
	assert.NotContains(t, string(data), "hidden")
	assert.NotContains(t, string(data), "\x1b[")
}

func TestNew_UnwritablePath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	_, err := New(Config{OutputPath: filepath.Join(blocker, "sub", "x.log")})
	assert.Error(t, err)
}
