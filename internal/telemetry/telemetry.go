// Package telemetry wires OpenTelemetry tracing to the logger: finished
// spans are written as log lines instead of being shipped to a collector.
package telemetry

import (
	"context"
	"encoding/hex"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"hgncmap/internal/logger"
)

// ServiceName is recorded on every span.
const ServiceName = "hgncmap"

// LogSpanExporter writes finished spans through the logger.
type LogSpanExporter struct {
	logger *logger.Logger
}

// NewLogSpanExporter creates an exporter that logs at debug level, or at
// error level for failed spans.
func NewLogSpanExporter(log *logger.Logger) *LogSpanExporter {
	if log == nil {
		log = logger.Discard()
	}

	return &LogSpanExporter{logger: log}
}

// ExportSpans logs each span. It never fails.
func (e *LogSpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		sc := span.SpanContext()
		traceID := sc.TraceID()
		spanID := sc.SpanID()

		args := []any{
			"span", span.Name(),
			"trace_id", hex.EncodeToString(traceID[:]),
			"span_id", hex.EncodeToString(spanID[:]),
			"duration", span.EndTime().Sub(span.StartTime()),
		}

		if span.Parent().IsValid() {
			parentID := span.Parent().SpanID()
			args = append(args, "parent_id", hex.EncodeToString(parentID[:]))
		}

		for _, attr := range span.Attributes() {
			args = append(args, string(attr.Key), attributeValue(attr.Value))
		}

		level := slog.LevelDebug
		if span.Status().Code == codes.Error {
			level = slog.LevelError
			args = append(args, "status", span.Status().Description)
		}

		e.logger.Log(ctx, level, "span finished", args...)
	}

	return nil
}

// Shutdown is a no-op; the logger outlives the exporter.
func (e *LogSpanExporter) Shutdown(context.Context) error {
	return nil
}

func attributeValue(v attribute.Value) any {
	switch v.Type() {
	case attribute.BOOL:
		return v.AsBool()
	case attribute.INT64:
		return v.AsInt64()
	case attribute.FLOAT64:
		return v.AsFloat64()
	case attribute.STRING:
		return v.AsString()
	default:
		return v.Emit()
	}
}

// NewTracerProvider returns a provider exporting synchronously through exp.
func NewTracerProvider(exp sdktrace.SpanExporter) *sdktrace.TracerProvider {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(attribute.String("service.name", ServiceName)),
	)
	if err != nil {
		res = resource.Default()
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exp)),
		sdktrace.WithResource(res),
	)
}

// Setup installs the global tracer provider. When disabled, a no-op
// provider is installed. The returned function flushes and stops tracing.
func Setup(enabled bool, log *logger.Logger) func(context.Context) error {
	if !enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())

		return func(context.Context) error { return nil }
	}

	tp := NewTracerProvider(NewLogSpanExporter(log))
	otel.SetTracerProvider(tp)

	return tp.Shutdown
}
