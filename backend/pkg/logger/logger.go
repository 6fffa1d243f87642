package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu       sync.RWMutex
	global   *zap.Logger
	fallback = sync.OnceValue(func() *zap.Logger {
		l, _ := zap.NewDevelopment()
		return l
	})
)

// Init builds the process logger. Production emits JSON at info level,
// anything else emits colored console output at debug level.
func Init(env string) error {
	l, err := newConfig(env).Build()
	if err != nil {
		return err
	}
	mu.Lock()
	global = l
	mu.Unlock()
	return nil
}

func newConfig(env string) zap.Config {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return config
}

// Sync flushes any buffered log entries
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if global != nil {
		_ = global.Sync()
	}
}

// Get returns the process logger, or a development logger before Init
func Get() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if global == nil {
		return fallback()
	}
	return global
}

// Named returns the process logger scoped to a component
func Named(component string) *zap.Logger {
	return Get().Named(component)
}

// Replace swaps the process logger and returns a func restoring the previous one.
func Replace(l *zap.Logger) func() {
	mu.Lock()
	prev := global
	global = l
	mu.Unlock()
	return func() {
		mu.Lock()
		global = prev
		mu.Unlock()
	}
}
