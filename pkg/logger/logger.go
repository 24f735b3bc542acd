// Package logger provides a process-wide logging facade backed by zap.
package logger

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.RWMutex
	base  *zap.Logger
	sugar *zap.SugaredLogger
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func init() {
	l, err := build("info")
	if err != nil {
		l = zap.NewNop()
	}
	replace(l)
}

// NewLogger creates a zap.Logger for the given level.
// "debug" selects the development encoder, everything else the production one.
func NewLogger(logLevel string) (*zap.Logger, error) {
	return build(logLevel)
}

func build(logLevel string) (*zap.Logger, error) {
	lvl, err := parseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	var cfg zap.Config
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil
	}
	level.SetLevel(lvl)
	cfg.Level = level
	return cfg.Build(zap.AddCallerSkip(1))
}

func parseLevel(logLevel string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "fatal":
		return zapcore.FatalLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", logLevel)
	}
}

func replace(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
	sugar = l.Sugar()
}

// SetGlobalLogLevel rebuilds the global logger for the given level.
// Unknown levels fall back to info.
func SetGlobalLogLevel(logLevel string) {
	l, err := build(logLevel)
	if err != nil {
		l, _ = build("info")
		if l == nil {
			return
		}
		l.Sugar().Warnf("unknown log level %q, using info", logLevel)
	}
	replace(l)
}

// SetLogger installs l as the global logger. Mostly useful in tests.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	replace(l)
}

// L returns the structured global logger. Components that log with fields
// receive this at construction.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.WithOptions(zap.AddCallerSkip(-1))
}

func s() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Sync flushes buffered log entries.
func Sync() error {
	return s().Sync()
}

// Debug logs a debug message.
func Debug(args ...interface{}) { s().Debug(args...) }

// Debugf logs a debug message with formatting.
func Debugf(format string, args ...interface{}) { s().Debugf(format, args...) }

// Info logs an informational message.
func Info(args ...interface{}) { s().Info(args...) }

// Infof logs an informational message with formatting.
func Infof(format string, args ...interface{}) { s().Infof(format, args...) }

// Warn logs a warning.
func Warn(args ...interface{}) { s().Warn(args...) }

// Warnf logs a warning with formatting.
func Warnf(format string, args ...interface{}) { s().Warnf(format, args...) }

// Error logs an error message.
func Error(args ...interface{}) { s().Error(args...) }

// Errorf logs an error message with formatting.
func Errorf(format string, args ...interface{}) { s().Errorf(format, args...) }

// Fatal logs a message and exits.
func Fatal(args ...interface{}) { s().Fatal(args...) }

// Fatalf logs a formatted message and exits.
func Fatalf(format string, args ...interface{}) { s().Fatalf(format, args...) }
