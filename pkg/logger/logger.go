package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Global zap-backed leveled logger shared by the services.
// Init once during startup; the package-level helpers are safe for
// concurrent use afterwards.

var (
	mu    sync.RWMutex
	sugar *zap.SugaredLogger
)

func init() {
	l, _ := zap.NewProduction()
	sugar = l.Sugar()
}

// Init configures the global logger for the given level (case-insensitive:
// debug, info, warn, error, fatal). Debug switches to the development
// encoder. Unknown levels fall back to info.
func Init(level string) {
	mu.Lock()
	defer mu.Unlock()

	lvl := zapcore.InfoLevel
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = zapcore.DebugLevel
	case "warn", "warning":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	case "fatal":
		lvl = zapcore.FatalLevel
	}

	var cfg zap.Config
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// keep the previous logger rather than crashing during startup
		sugar.Errorw("logger init failed", "error", err)
		return
	}
	sugar = l.Sugar()
}

// L returns the current sugared logger for callers that want structured
// key/value logging (Infow, Errorw, ...).
func L() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Sync flushes buffered log entries. Call on shutdown.
func Sync() {
	_ = L().Sync()
}

func Debugf(format string, v ...interface{}) { L().Debugf(format, v...) }
func Infof(format string, v ...interface{})  { L().Infof(format, v...) }
func Warnf(format string, v ...interface{})  { L().Warnf(format, v...) }
func Errorf(format string, v ...interface{}) { L().Errorf(format, v...) }
func Fatalf(format string, v ...interface{}) { L().Fatalf(format, v...) }

// Single-string helpers kept for brief messages.
func Debug(msg string) { L().Debug(msg) }
func Info(msg string)  { L().Info(msg) }
func Warn(msg string)  { L().Warn(msg) }
func Error(msg string) { L().Error(msg) }
