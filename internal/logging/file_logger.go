package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// rotatingFile is the io.Writer behind a FileLogger. Loggers derived with
// WithTraceID share it, so size accounting and rotation stay consistent.
type rotatingFile struct {
	mu          sync.Mutex
	file        *os.File
	path        string
	maxSize     int64
	currentSize int64
	rotate      bool
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return 0, os.ErrClosed
	}
	if r.rotate && r.currentSize >= r.maxSize {
		if err := r.rotateLocked(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to rotate log file: %v\n", err)
		}
	}
	n, err := r.file.Write(p)
	r.currentSize += int64(n)
	return n, err
}

func (r *rotatingFile) rotateLocked() error {
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}

	rotatedPath := fmt.Sprintf("%s.%s", r.path, time.Now().UTC().Format("20060102-150405.000000"))
	renameErr := os.Rename(r.path, rotatedPath)

	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		r.file = nil
		return fmt.Errorf("failed to reopen log file: %w", err)
	}
	r.file = file
	if renameErr != nil {
		return fmt.Errorf("failed to rename log file: %w", renameErr)
	}
	r.currentSize = 0
	return nil
}

func (r *rotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// FileLogger writes one JSON object per line (see LogEntry) via zerolog
type FileLogger struct {
	out     *rotatingFile
	zl      zerolog.Logger
	levelMu *sync.RWMutex
	level   *LogLevel
	traceID string
}

// FileLoggerConfig contains configuration for file logger
type FileLoggerConfig struct {
	FilePath      string
	Level         LogLevel
	MaxFileSize   int64 // bytes, 0 disables rotation
	RotateEnabled bool
}

// NewFileLogger creates a new file logger
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	dir := filepath.Dir(config.FilePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	out := &rotatingFile{
		file:        file,
		path:        config.FilePath,
		maxSize:     config.MaxFileSize,
		currentSize: info.Size(),
		rotate:      config.RotateEnabled && config.MaxFileSize > 0,
	}
	level := config.Level
	return &FileLogger{
		out:     out,
		zl:      zerolog.New(out),
		levelMu: &sync.RWMutex{},
		level:   &level,
	}, nil
}

func (l *FileLogger) log(level LogLevel, msg string, fields ...Field) {
	l.levelMu.RLock()
	minLevel := *l.level
	l.levelMu.RUnlock()
	if level < minLevel {
		return
	}

	ev := l.zl.Log().
		Time("timestamp", time.Now().UTC()).
		Str("level", level.String())
	if l.traceID != "" {
		ev = ev.Str("traceId", l.traceID)
	}
	if len(fields) > 0 {
		m := make(map[string]interface{}, len(fields))
		for _, field := range fields {
			m[field.Key] = field.Value
		}
		ev = ev.Interface("fields", m)
	}
	ev.Msg(msg)
}

func (l *FileLogger) Debug(msg string, fields ...Field) { l.log(DEBUG, msg, fields...) }
func (l *FileLogger) Info(msg string, fields ...Field)  { l.log(INFO, msg, fields...) }
func (l *FileLogger) Warn(msg string, fields ...Field)  { l.log(WARN, msg, fields...) }
func (l *FileLogger) Error(msg string, fields ...Field) { l.log(ERROR, msg, fields...) }

func (l *FileLogger) WithTraceID(traceID string) Logger {
	return &FileLogger{
		out:     l.out,
		zl:      l.zl,
		levelMu: l.levelMu,
		level:   l.level,
		traceID: traceID,
	}
}

func (l *FileLogger) WithContext(ctx context.Context) Logger {
	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		return l
	}
	return l.WithTraceID(traceID)
}

// SetLevel changes the level for this logger and every logger derived from it
func (l *FileLogger) SetLevel(level LogLevel) {
	l.levelMu.Lock()
	defer l.levelMu.Unlock()
	*l.level = level
}

// Close closes the log file
func (l *FileLogger) Close() error {
	return l.out.Close()
}
