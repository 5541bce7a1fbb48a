// Package logger implements a logging adapter using log/slog.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"go.trai.ch/kiln/internal/core/ports"
)

// Logger implements ports.Logger using log/slog.
type Logger struct {
	logger   *slog.Logger
	mu       sync.RWMutex
	jsonMode bool
	level    slog.Level
	output   io.Writer
}

// New creates a new Logger instance writing pretty output to stderr.
func New() ports.Logger {
	l := &Logger{
		level:  slog.LevelInfo,
		output: os.Stderr,
	}
	l.logger = slog.New(l.handler())
	return l
}

// NewFromEnv creates a Logger with the modes listed in value, a comma separated
// list of "debug" and "json". Unknown modes are ignored.
func NewFromEnv(value string) ports.Logger {
	l := &Logger{
		level:  slog.LevelInfo,
		output: os.Stderr,
	}
	for mode := range strings.SplitSeq(value, ",") {
		switch strings.ToLower(strings.TrimSpace(mode)) {
		case "debug":
			l.level = slog.LevelDebug
		case "json":
			l.jsonMode = true
		}
	}
	l.logger = slog.New(l.handler())
	return l
}

// SetOutput updates the logger's output destination.
// If w is nil, os.Stderr is used.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if w == nil {
		w = os.Stderr
	}
	l.output = w
	l.logger = slog.New(l.handler())
}

// SetJSON switches between JSON and pretty logging.
func (l *Logger) SetJSON(enable bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.jsonMode = enable
	l.logger = slog.New(l.handler())
}

// SetVerbose enables debug messages.
func (l *Logger) SetVerbose(enable bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.level = slog.LevelInfo
	if enable {
		l.level = slog.LevelDebug
	}
	l.logger = slog.New(l.handler())
}

// handler must be called with l.mu held.
func (l *Logger) handler() slog.Handler {
	opts := &slog.HandlerOptions{Level: l.level}
	if l.jsonMode {
		return slog.NewJSONHandler(l.output, opts)
	}
	return newConsoleHandler(l.output, opts)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, attrs ...any) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Debug(msg, attrs...)
}

// Info logs an informational message.
func (l *Logger) Info(msg string, attrs ...any) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Info(msg, attrs...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, attrs ...any) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Warn(msg, attrs...)
}

// Error logs an error together with its cause chain.
func (l *Logger) Error(err error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err == nil {
		return
	}

	if l.jsonMode {
		l.logger.Error("operation failed", "error", err)
		return
	}

	l.logger.Error(formatErrorEntries(collectErrorEntries(err)))
}
