package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readEntries decodes every JSON line written to path
func readEntries(t *testing.T, path string) []LogEntry {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []LogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e LogEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e), "line: %s", scanner.Text())
		entries = append(entries, e)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func newTestFileLogger(t *testing.T, level LogLevel) (*FileLogger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logs", "gdsync.log")
	logger, err := NewFileLogger(FileLoggerConfig{FilePath: path, Level: level})
	require.NoError(t, err)
	return logger, path
}

func TestFileLogger_JSONLayout(t *testing.T) {
	logger, path := newTestFileLogger(t, DEBUG)

	logger.WithTraceID("trace-123").Info("Uploading file",
		F("name", "img.jpg"),
		F("bytes", 5),
	)
	require.NoError(t, logger.Close())

	entries := readEntries(t, path)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "INFO", e.Level)
	assert.Equal(t, "Uploading file", e.Message)
	assert.Equal(t, "trace-123", e.TraceID)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, "img.jpg", e.Fields["name"])
	assert.Equal(t, float64(5), e.Fields["bytes"])
}

func TestFileLogger_OmitsEmptyTraceAndFields(t *testing.T) {
	logger, path := newTestFileLogger(t, DEBUG)
	logger.Warn("bare")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "traceId")
	assert.NotContains(t, raw, "fields")
	assert.Equal(t, "WARN", raw["level"])
}

func TestFileLogger_LevelIsSharedWithDerivedLoggers(t *testing.T) {
	logger, path := newTestFileLogger(t, WARN)
	traced := logger.WithTraceID("t1")

	traced.Info("dropped")
	logger.SetLevel(DEBUG)
	traced.Debug("kept")
	require.NoError(t, logger.Close())

	entries := readEntries(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Message)
	assert.Equal(t, "DEBUG", entries[0].Level)
}

func TestFileLogger_WithContext(t *testing.T) {
	logger, path := newTestFileLogger(t, INFO)

	assert.Same(t, logger, logger.WithContext(context.Background()))
	logger.WithContext(ContextWithTraceID(context.Background(), "ctx-trace")).Error("failed")
	require.NoError(t, logger.Close())

	entries := readEntries(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "ctx-trace", entries[0].TraceID)
}

func TestFileLogger_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gdsync.log")
	logger, err := NewFileLogger(FileLoggerConfig{
		FilePath:      path,
		Level:         INFO,
		MaxFileSize:   256,
		RotateEnabled: true,
	})
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		logger.Info("journal entry recorded", F("seq", i))
	}
	require.NoError(t, logger.Close())

	rotated, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	assert.NotEmpty(t, rotated)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(512))
}

func TestFileLogger_CloseIsIdempotent(t *testing.T) {
	logger, _ := newTestFileLogger(t, INFO)
	require.NoError(t, logger.Close())
	assert.NoError(t, logger.Close())
}
