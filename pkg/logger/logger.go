// Package logger is the process-wide structured logger.
//
// Components log with a bracketed tag prefix ("[ws]", "[router]", ...) so that
// console output stays greppable, and attach zap fields where the values are
// useful for filtering (user ids, message ids).
package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the shared logger. It is usable before Init is called (debug level,
// console encoder) so that package init code and tests can log freely.
var Log *zap.Logger

func init() {
	Log = build(zapcore.DebugLevel)
}

// Init rebuilds Log with the given level name ("debug", "info", "warn",
// "error"). Unknown names fall back to info.
func Init(level string) {
	Log = build(parseLevel(level))
}

// Sync flushes buffered entries. Call it before the process exits.
func Sync() {
	_ = Log.Sync()
}

func build(level zapcore.Level) *zap.Logger {
	encCfg := zapcore.EncoderConfig{
		TimeKey:      "ts",
		LevelKey:     "level",
		NameKey:      "logger",
		CallerKey:    "caller",
		MessageKey:   "msg",
		LineEnding:   zapcore.DefaultLineEnding,
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeLevel:  zapcore.CapitalLevelEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(os.Stdout),
		level,
	)

	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func Info(msg string, fields ...zap.Field)  { Log.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { Log.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Log.Error(msg, fields...) }
func Debug(msg string, fields ...zap.Field) { Log.Debug(msg, fields...) }

func Infof(format string, args ...any) {
	Log.Info(fmt.Sprintf(format, args...))
}

func Warnf(format string, args ...any) {
	Log.Warn(fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...any) {
	Log.Error(fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...any) {
	Log.Debug(fmt.Sprintf(format, args...))
}

// Fatalf logs and exits with status 1.
func Fatalf(format string, args ...any) {
	Log.Fatal(fmt.Sprintf(format, args...))
}
