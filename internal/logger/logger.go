package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global logger instance
	log *zap.SugaredLogger
	// helper is log with one caller frame skipped for the package functions
	helper *zap.SugaredLogger
)

// Options describes where log output goes.
type Options struct {
	Level    string
	Console  io.Writer
	ToFile   bool
	FilePath string
}

// Init initializes the global logger writing to stdout and, optionally, a JSON file
func Init(level string, toFile bool, filePath string) error {
	l, err := New(Options{Level: level, Console: os.Stdout, ToFile: toFile, FilePath: filePath})
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

// New builds a logger without touching the global one
func New(opts Options) (*zap.SugaredLogger, error) {
	var cores []zapcore.Core

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	// Unknown levels fall back to info
	zapLevel, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}

	if opts.Console != nil {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.AddSync(opts.Console),
			zapLevel,
		))
	}

	if opts.ToFile {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(opts.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}

		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(file),
			zapLevel,
		))
	}

	core := zapcore.NewTee(cores...)
	return zap.New(core, zap.AddCaller()).Sugar(), nil
}

// Get returns the global logger instance
func Get() *zap.SugaredLogger {
	if log == nil {
		// Fallback to default logger if not initialized
		defaultLogger, _ := zap.NewProduction()
		Set(defaultLogger.Sugar())
	}
	return log
}

// Set replaces the global logger, e.g. with zap.NewNop().Sugar() in tests
func Set(l *zap.SugaredLogger) {
	log = l
	helper = l.WithOptions(zap.AddCallerSkip(1))
}

func helperLogger() *zap.SugaredLogger {
	if helper == nil {
		Get()
	}
	return helper
}

// Debug logs a debug message
func Debug(msg string, keysAndValues ...interface{}) {
	helperLogger().Debugw(msg, keysAndValues...)
}

// Info logs an info message
func Info(msg string, keysAndValues ...interface{}) {
	helperLogger().Infow(msg, keysAndValues...)
}

// Warn logs a warning message
func Warn(msg string, keysAndValues ...interface{}) {
	helperLogger().Warnw(msg, keysAndValues...)
}

// Error logs an error message
func Error(msg string, keysAndValues ...interface{}) {
	helperLogger().Errorw(msg, keysAndValues...)
}

// Fatal logs a fatal message and exits
func Fatal(msg string, keysAndValues ...interface{}) {
	helperLogger().Fatalw(msg, keysAndValues...)
}

// Sync flushes any buffered log entries
func Sync() error {
	if log != nil {
		return log.Sync()
	}
	return nil
}

// With creates a child logger with additional fields
func With(keysAndValues ...interface{}) *zap.SugaredLogger {
	return Get().With(keysAndValues...)
}
