package logger

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// SpanLogger writes every finished span as a debug entry.
// It lets the command line see per-stage timings without a tracing backend.
type SpanLogger struct {
	logger *zap.Logger
}

var _ sdktrace.SpanProcessor = (*SpanLogger)(nil)

func NewSpanLogger(logger *zap.Logger) *SpanLogger {
	return &SpanLogger{logger: WithFields(logger)}
}

func (s *SpanLogger) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (s *SpanLogger) OnEnd(span sdktrace.ReadOnlySpan) {
	fields := []zap.Field{
		zap.String("span", span.Name()),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.Duration("duration", span.EndTime().Sub(span.StartTime())),
	}

	status := span.Status()
	if status.Code == codes.Error {
		fields = append(fields, zap.String("status", "error"), zap.String("error", status.Description))
	}

	s.logger.Debug("span finished", fields...)
}

func (s *SpanLogger) Shutdown(context.Context) error { return nil }

func (s *SpanLogger) ForceFlush(context.Context) error { return nil }
