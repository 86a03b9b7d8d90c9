package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a thin zap wrapper whose methods take alternating
// key/value pairs, keeping zap types out of call sites.
type Logger struct {
	zl *zap.Logger
}

// LogConfig selects level, encoding and sink. The rotation knobs only
// apply when Output names a file.
type LogConfig struct {
	Level      string
	Format     string
	Output     string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds a logger from cfg. Unknown levels fall back to info;
// any output other than empty or "stdout" is treated as a file path
// and rotated by lumberjack.
func New(cfg LogConfig) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	core := zapcore.NewCore(newEncoder(cfg.Format), newSink(cfg), level)
	zl := zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	return &Logger{zl: zl}, nil
}

func newEncoder(format string) zapcore.Encoder {
	var ec zapcore.EncoderConfig
	if format == "json" {
		ec = zap.NewProductionEncoderConfig()
	} else {
		ec = zap.NewDevelopmentEncoderConfig()
	}
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeLevel = zapcore.LowercaseLevelEncoder
	ec.EncodeCaller = zapcore.ShortCallerEncoder

	if format == "json" {
		return zapcore.NewJSONEncoder(ec)
	}
	return zapcore.NewConsoleEncoder(ec)
}

func newSink(cfg LogConfig) zapcore.WriteSyncer {
	if cfg.Output == "" || cfg.Output == "stdout" {
		return zapcore.Lock(os.Stdout)
	}
	// Files rotate instead of growing without bound.
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Output,
		MaxSize:    orDefault(cfg.MaxSizeMB, 100),
		MaxBackups: orDefault(cfg.MaxBackups, 3),
		MaxAge:     orDefault(cfg.MaxAgeDays, 28),
		Compress:   true,
	})
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// NewNopLogger returns a logger that discards everything, for tests.
func NewNopLogger() *Logger {
	return &Logger{zl: zap.NewNop()}
}

// Sync flushes any buffered entries.
func (l *Logger) Sync() {
	_ = l.zl.Sync()
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, kv ...interface{}) {
	l.zl.Debug(msg, toFields(kv)...)
}

// Info logs at info level.
func (l *Logger) Info(msg string, kv ...interface{}) {
	l.zl.Info(msg, toFields(kv)...)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, kv ...interface{}) {
	l.zl.Warn(msg, toFields(kv)...)
}

// Error logs at error level.
func (l *Logger) Error(msg string, kv ...interface{}) {
	l.zl.Error(msg, toFields(kv)...)
}

// Fatal logs at fatal level and exits.
func (l *Logger) Fatal(msg string, kv ...interface{}) {
	l.zl.Fatal(msg, toFields(kv)...)
}

// toFields pairs up the arguments; a key that is not a string drops
// the pair, and a dangling value is ignored.
func toFields(kv []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			fields = append(fields, zap.Any(key, kv[i+1]))
		}
	}
	return fields
}
