package logging

import (
	"context"
	"maps"
	"slices"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a *zap.Logger to the Logger interface.
type ZapLogger struct {
	base  *zap.Logger
	level zap.AtomicLevel
}

// NewZapLogger wraps base. Levels below the one set with SetLevel are dropped
// before reaching base's own core.
func NewZapLogger(base *zap.Logger) *ZapLogger {
	if base == nil {
		base = zap.NewNop()
	}
	return &ZapLogger{
		base:  base,
		level: zap.NewAtomicLevelAt(zapcore.InfoLevel),
	}
}

// NewJSONLogger builds a production zap logger writing JSON to stderr.
func NewJSONLogger() (*ZapLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return NewZapLogger(base), nil
}

func toZapFields(fields []Fields) []zap.Field {
	merged := make(Fields)
	for _, f := range fields {
		maps.Copy(merged, f)
	}
	out := make([]zap.Field, 0, len(merged))
	for _, k := range slices.Sorted(maps.Keys(merged)) {
		out = append(out, zap.Any(k, merged[k]))
	}
	return out
}

func toZapLevel(level Level) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (z *ZapLogger) Debug(msg string, fields ...Fields) {
	if z.level.Enabled(zapcore.DebugLevel) {
		z.base.Debug(msg, toZapFields(fields)...)
	}
}

func (z *ZapLogger) Info(msg string, fields ...Fields) {
	if z.level.Enabled(zapcore.InfoLevel) {
		z.base.Info(msg, toZapFields(fields)...)
	}
}

func (z *ZapLogger) Warn(msg string, fields ...Fields) {
	if z.level.Enabled(zapcore.WarnLevel) {
		z.base.Warn(msg, toZapFields(fields)...)
	}
}

func (z *ZapLogger) Error(err error, msg string, fields ...Fields) {
	if z.level.Enabled(zapcore.ErrorLevel) {
		z.base.Error(msg, append(toZapFields(fields), zap.Error(err))...)
	}
}

func (z *ZapLogger) WithFields(fields Fields) Logger {
	return &ZapLogger{
		base:  z.base.With(toZapFields([]Fields{fields})...),
		level: z.level,
	}
}

func (z *ZapLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := fieldsFromContext(ctx); ok {
		return z.WithFields(fields)
	}
	return z
}

func (z *ZapLogger) SetLevel(level Level) {
	z.level.SetLevel(toZapLevel(level))
}

// Sync flushes buffered entries of the underlying zap logger.
func (z *ZapLogger) Sync() error {
	return z.base.Sync()
}
