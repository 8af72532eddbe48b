package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var (
	atomicLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base        *zap.Logger
	sugar       *zap.SugaredLogger
	always      *zap.SugaredLogger
	initOnce    sync.Once
)

// ParseLevel converts a level name into a LogLevel. Unknown names map to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func levelFromEnv() LogLevel {
	if debug := os.Getenv("DEBUG"); debug != "" {
		switch strings.ToLower(debug) {
		case "1", "true", "yes", "on":
			return LevelDebug
		}
	}
	return ParseLevel(os.Getenv("LOG_LEVEL"))
}

func initLogger() {
	initOnce.Do(func() {
		atomicLevel.SetLevel(levelFromEnv().zapLevel())

		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = func(ts time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(ts.Format("2006/01/02 15:04:05.000"))
		}
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

		encoder := zapcore.NewConsoleEncoder(encCfg)
		out := zapcore.Lock(os.Stderr)
		base = zap.New(zapcore.NewCore(encoder, out, atomicLevel))
		sugar = base.Sugar()
		always = zap.New(zapcore.NewCore(encoder, out, zapcore.DebugLevel)).Sugar()
	})
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLogger()
	switch atomicLevel.Level() {
	case zapcore.DebugLevel:
		return LevelDebug
	case zapcore.WarnLevel:
		return LevelWarn
	case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return LevelError
	default:
		return LevelInfo
	}
}

// SetLevel changes the level at runtime.
func SetLevel(level LogLevel) {
	initLogger()
	atomicLevel.SetLevel(level.zapLevel())
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

// Named returns a child logger for a component. Components that log
// key/value pairs use this instead of the printf helpers.
func Named(name string) *zap.SugaredLogger {
	initLogger()
	return sugar.Named(name)
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	initLogger()
	sugar.Debugf(format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	initLogger()
	sugar.Infof(format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	initLogger()
	sugar.Warnf(format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	initLogger()
	sugar.Errorf(format, args...)
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	initLogger()
	sugar.Fatalf(format, args...)
}

// Printf logs regardless of level. Used for banners and shutdown steps.
func Printf(format string, args ...interface{}) {
	initLogger()
	always.Infof(format, args...)
}

// Println logs regardless of level.
func Println(args ...interface{}) {
	Printf("%s", strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}

// Sync flushes buffered log entries.
func Sync() {
	if base != nil {
		_ = base.Sync()
	}
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}
