package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// fieldsToZap converts the optional structured-field maps of the logging
// methods into zap fields. All entries are appended in order.
func fieldsToZap(err error, fields ...map[string]interface{}) []zap.Field {
	var zf []zap.Field
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	for _, m := range fields {
		for k, v := range m {
			zf = append(zf, zap.Any(k, v))
		}
	}
	return zf
}

// traceFields extracts trace and span identifiers from the context when
// tracing integration is enabled. The identifiers are expected under the
// keys used by the tracer integration; missing values are simply omitted.
func (l *Logger) traceFields(ctx context.Context) []zap.Field {
	if !l.tracingEnabled || ctx == nil {
		return nil
	}
	var zf []zap.Field
	if traceID, ok := ctx.Value(traceIDKey).(string); ok && traceID != "" {
		zf = append(zf, zap.String("trace_id", traceID))
	}
	if spanID, ok := ctx.Value(spanIDKey).(string); ok && spanID != "" {
		zf = append(zf, zap.String("span_id", spanID))
	}
	return zf
}

type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	spanIDKey  contextKey = "span_id"
)

// log is the single funnel for all logging methods.
func (l *Logger) log(lvl zapcore.Level, ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	zf := fieldsToZap(err, fields...)
	zf = append(zf, l.traceFields(ctx)...)

	switch lvl {
	case zapcore.DebugLevel:
		l.Zap.Debug(msg, zf...)
	case zapcore.InfoLevel:
		l.Zap.Info(msg, zf...)
	case zapcore.WarnLevel:
		l.Zap.Warn(msg, zf...)
	case zapcore.ErrorLevel:
		l.Zap.Error(msg, zf...)
	}
}

// Debug logs a debug-level message with optional error and structured fields.
func (l *Logger) Debug(msg string, err error, fields ...map[string]interface{}) {
	l.log(zapcore.DebugLevel, nil, msg, err, fields...)
}

// Info logs an info-level message with optional error and structured fields.
func (l *Logger) Info(msg string, err error, fields ...map[string]interface{}) {
	l.log(zapcore.InfoLevel, nil, msg, err, fields...)
}

// Warn logs a warning-level message with optional error and structured fields.
func (l *Logger) Warn(msg string, err error, fields ...map[string]interface{}) {
	l.log(zapcore.WarnLevel, nil, msg, err, fields...)
}

// Error logs an error-level message with optional error and structured fields.
func (l *Logger) Error(msg string, err error, fields ...map[string]interface{}) {
	l.log(zapcore.ErrorLevel, nil, msg, err, fields...)
}

// DebugWithContext logs a debug-level message and, when tracing is enabled,
// attaches trace context extracted from ctx.
func (l *Logger) DebugWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	l.log(zapcore.DebugLevel, ctx, msg, err, fields...)
}

// InfoWithContext logs an info-level message with trace context.
func (l *Logger) InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	l.log(zapcore.InfoLevel, ctx, msg, err, fields...)
}

// WarnWithContext logs a warning-level message with trace context.
func (l *Logger) WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	l.log(zapcore.WarnLevel, ctx, msg, err, fields...)
}

// ErrorWithContext logs an error-level message with trace context.
func (l *Logger) ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	l.log(zapcore.ErrorLevel, ctx, msg, err, fields...)
}
