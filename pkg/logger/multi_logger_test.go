package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMultiLogger_WritesCategoryFiles(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)

	ml.LogBatchEvent("batch_started", zap.String("batch_id", "b-1"), zap.Int("tasks", 3))
	ml.LogAppError("engine failed", zap.String("key", "Fight.Club.1999.mp4"))
	require.NoError(t, ml.Close())

	reader := NewLogReader(dir)

	batch, err := reader.ReadLogs(CategoryBatch, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "batch_started", batch[0].Message)
	assert.Equal(t, "info", batch[0].Level)
	assert.Equal(t, "batch", batch[0].Category)
	assert.Equal(t, "b-1", batch[0].Fields["batch_id"])
	assert.EqualValues(t, 3, batch[0].Fields["tasks"])

	errs, err := reader.ReadLogs(CategoryError, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "error", errs[0].Level)
}

func TestMultiLogger_ErrorLevelOnly(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "debug", LogsDir: dir})
	require.NoError(t, err)

	ml.Error().Info("not an error")
	require.NoError(t, ml.Close())

	entries, err := NewLogReader(dir).ReadLogs(CategoryError, time.Now(), 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewMultiLogger_RequiresDir(t *testing.T) {
	_, err := NewMultiLogger(MultiLoggerConfig{})
	assert.Error(t, err)
}

func TestLogReader_RawLinesAndLimit(t *testing.T) {
	dir := t.TempDir()
	path := CategoryLogPath(dir, CategoryDownload, time.Now())
	content := "\n=== [2026-01-01 10:00:00] Download: a.mp4 ===\n$ yt-dlp url\n[a.mp4] PROGRESS: 50%\n[2026-01-01 10:01:00] SUCCESS: done\n=== END ===\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	reader := NewLogReader(dir)

	entries, err := reader.ReadLogs(CategoryDownload, time.Now(), 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "[2026-01-01 10:01:00] SUCCESS: done", entries[0].Message)
	assert.Equal(t, "=== END ===", entries[1].Message)

	found, err := reader.SearchLogs(CategoryDownload, time.Now(), "progress", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "[a.mp4] PROGRESS: 50%", found[0].Message)
}

func TestLogReader_MissingFile(t *testing.T) {
	entries, err := NewLogReader(filepath.Join(t.TempDir(), "none")).ReadLogs(CategoryBatch, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("download")
	require.NoError(t, err)
	assert.Equal(t, CategoryDownload, c)

	_, err = ParseCategory("queue")
	assert.Error(t, err)
}
