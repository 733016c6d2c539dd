package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// LevelTrace is below debug and only used for very verbose diagnostics
const LevelTrace = slog.LevelDebug - 4

var logger atomic.Pointer[slog.Logger]

func init() {
	// Initialize with compact handler for readable console output
	// Can be replaced with JSON handler for machine consumption
	SetOutput(os.Stderr, slog.LevelInfo, false)
}

// SetOutput replaces the package logger. Sessions created afterwards pick it up.
func SetOutput(w io.Writer, level slog.Level, json bool) {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = NewCompactHandler(w, opts)
	}
	logger.Store(slog.New(handler))
}

// SetLevel changes the logging level of the compact console output
func SetLevel(level slog.Level) {
	SetOutput(os.Stderr, level, false)
}

// SetJSONOutput switches to JSON format output
func SetJSONOutput(level slog.Level) {
	SetOutput(os.Stderr, level, true)
}

// Logger returns the current package logger for injection into components
func Logger() *slog.Logger {
	return logger.Load()
}

// New returns the package logger tagged with a component name
func New(component string) *slog.Logger {
	return Logger().With("component", component)
}

// ParseLevel maps a verbosity name and a -v count to a level.
// An explicit name wins; otherwise each -v lowers the level one step.
func ParseLevel(verbosity string, verboseCount int) slog.Level {
	switch strings.ToLower(verbosity) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	switch {
	case verboseCount >= 2:
		return LevelTrace
	case verboseCount == 1:
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// Trace logs at TRACE level (very verbose, debug-time only)
func Trace(msg string, args ...any) {
	Logger().Log(context.Background(), LevelTrace, msg, args...)
}

// Debug logs at DEBUG level (internal component behavior)
func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// Info logs at INFO level (user-facing operations)
func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// Warn logs at WARN level (should be monitored)
func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// Error logs at ERROR level (logical bugs that shouldn't happen)
func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}
