package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logging contract used across the application.
// The *Obj variants attach an event tag and a free-form payload.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	DebugObj(msg, event string, payload map[string]any)
	InfoObj(msg, event string, payload map[string]any)
	WarnObj(msg, event string, payload map[string]any)
	ErrorObj(msg, event string, payload map[string]any)
}

type zapLogger struct {
	z *zap.Logger
}

// New builds a production zap logger at the given level ("debug", "info",
// "warn", "error"). Unknown levels default to info.
func New(level string) (Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return &zapLogger{z: z}, nil
}

func (l *zapLogger) Debug(msg string) { l.z.Debug(msg) }
func (l *zapLogger) Info(msg string)  { l.z.Info(msg) }
func (l *zapLogger) Warn(msg string)  { l.z.Warn(msg) }
func (l *zapLogger) Error(msg string) { l.z.Error(msg) }

func (l *zapLogger) DebugObj(msg, event string, payload map[string]any) {
	l.z.Debug(msg, objFields(event, payload)...)
}

func (l *zapLogger) InfoObj(msg, event string, payload map[string]any) {
	l.z.Info(msg, objFields(event, payload)...)
}

func (l *zapLogger) WarnObj(msg, event string, payload map[string]any) {
	l.z.Warn(msg, objFields(event, payload)...)
}

func (l *zapLogger) ErrorObj(msg, event string, payload map[string]any) {
	l.z.Error(msg, objFields(event, payload)...)
}

func objFields(event string, payload map[string]any) []zap.Field {
	fields := make([]zap.Field, 0, len(payload)+1)
	fields = append(fields, zap.String("event", event))
	for k, v := range payload {
		fields = append(fields, zap.Any(k, v))
	}
	return fields
}

// Sync flushes buffered log entries when the underlying logger supports it.
func Sync(l Logger) {
	if zl, ok := l.(*zapLogger); ok {
		_ = zl.z.Sync()
	}
}

// NopLogger discards everything; used in tests and as a nil-safe default.
type NopLogger struct{}

func (NopLogger) Debug(string)                            {}
func (NopLogger) Info(string)                             {}
func (NopLogger) Warn(string)                             {}
func (NopLogger) Error(string)                            {}
func (NopLogger) DebugObj(string, string, map[string]any) {}
func (NopLogger) InfoObj(string, string, map[string]any)  {}
func (NopLogger) WarnObj(string, string, map[string]any)  {}
func (NopLogger) ErrorObj(string, string, map[string]any) {}

// Ensure returns a usable logger, substituting a NopLogger for nil.
func Ensure(l Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return l
}
