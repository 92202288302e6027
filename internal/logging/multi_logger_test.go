package logging

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingLogger remembers what reached it
type recordingLogger struct {
	traceID  string
	messages []string
	level    LogLevel
	closeErr error
	derived  []*recordingLogger
}

func (r *recordingLogger) add(msg string) {
	r.messages = append(r.messages, msg)
}

func (r *recordingLogger) Debug(msg string, _ ...Field) { r.add("DEBUG " + msg) }
func (r *recordingLogger) Info(msg string, _ ...Field)  { r.add("INFO " + msg) }
func (r *recordingLogger) Warn(msg string, _ ...Field)  { r.add("WARN " + msg) }
func (r *recordingLogger) Error(msg string, _ ...Field) { r.add("ERROR " + msg) }

func (r *recordingLogger) WithContext(ctx context.Context) Logger {
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		return r.WithTraceID(traceID)
	}
	return r
}

func (r *recordingLogger) SetLevel(level LogLevel) {
	r.level = level
}

func (r *recordingLogger) Close() error {
	return r.closeErr
}

func (r *recordingLogger) WithTraceID(traceID string) Logger {
	child := &recordingLogger{traceID: traceID}
	r.derived = append(r.derived, child)
	return child
}

func TestMultiLogger_FansOut(t *testing.T) {
	a, b := &recordingLogger{}, &recordingLogger{}
	m := NewMultiLogger(a, b)

	m.Debug("d")
	m.Info("i")
	m.Warn("w")
	m.Error("e")

	want := []string{"DEBUG d", "INFO i", "WARN w", "ERROR e"}
	assert.Equal(t, want, a.messages)
	assert.Equal(t, want, b.messages)
}

func TestMultiLogger_WithTraceIDReachesEveryChild(t *testing.T) {
	a, b := &recordingLogger{}, &recordingLogger{}
	traced := NewMultiLogger(a, b).WithTraceID("trace-9")
	traced.Info("upload")

	for _, parent := range []*recordingLogger{a, b} {
		require.Len(t, parent.derived, 1)
		assert.Equal(t, "trace-9", parent.derived[0].traceID)
		assert.Equal(t, []string{"INFO upload"}, parent.derived[0].messages)
		assert.Empty(t, parent.messages)
	}
}

func TestMultiLogger_WithContext(t *testing.T) {
	a := &recordingLogger{}
	m := NewMultiLogger(a)

	assert.Same(t, m, m.WithContext(context.Background()))

	m.WithContext(ContextWithTraceID(context.Background(), "ctx-trace"))
	require.Len(t, a.derived, 1)
	assert.Equal(t, "ctx-trace", a.derived[0].traceID)
}

func TestMultiLogger_SetLevel(t *testing.T) {
	a, b := &recordingLogger{}, &recordingLogger{}
	NewMultiLogger(a, b).SetLevel(ERROR)
	assert.Equal(t, ERROR, a.level)
	assert.Equal(t, ERROR, b.level)
}

func TestMultiLogger_CloseJoinsErrors(t *testing.T) {
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	m := NewMultiLogger(&recordingLogger{closeErr: errA}, &recordingLogger{}, &recordingLogger{closeErr: errB})

	err := m.Close()
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.NoError(t, NewMultiLogger(&recordingLogger{}).Close())
}

func TestMultiLogger_FileAndConsoleShareTrace(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "gdsync.log")
	file, err := NewFileLogger(FileLoggerConfig{FilePath: path, Level: INFO})
	require.NoError(t, err)

	m := NewMultiLogger(file, NewConsoleLogger(ConsoleLoggerConfig{Writer: &console, Level: INFO}))
	m.WithTraceID("abcdef1234567890").Info("Upload complete", F("fileId", "f1"))
	require.NoError(t, m.Close())

	entries := readEntries(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "abcdef1234567890", entries[0].TraceID)
	assert.Equal(t, "f1", entries[0].Fields["fileId"])

	out := console.String()
	assert.Contains(t, out, "Upload complete")
	assert.Contains(t, out, "abcdef12")
	assert.NotContains(t, out, "abcdef1234567890")
}

func TestNoOpLogger(t *testing.T) {
	n := NewNoOpLogger()
	n.Info("ignored")
	assert.Same(t, n, n.WithTraceID("t"))
	assert.NoError(t, n.Close())
}
