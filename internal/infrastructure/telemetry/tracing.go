package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer used for spans opened by this module
const TracerName = "gridsync"

// Span attribute keys
const (
	SpanAttrScreen    = "grid.screen"
	SpanAttrSessionID = "grid.session_id"
	SpanAttrRows      = "grid.rows"
	SpanAttrTable     = "grid.table"
)

// StartSpan starts an internal span named name, with attributes given as
// alternating keys and values.
//
//	ctx, span := telemetry.StartSpan(ctx, "closing.save_changes", telemetry.SpanAttrRows, n)
//	defer span.End()
func StartSpan(ctx context.Context, name string, keyValues ...any) (context.Context, trace.Span) {
	opts := []trace.SpanStartOption{trace.WithSpanKind(trace.SpanKindInternal)}
	if attrs := toAttributes(keyValues); len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(attrs...))
	}
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name, opts...)
}

// SetAttributes adds alternating key/value attributes to span.
func SetAttributes(span trace.Span, keyValues ...any) {
	span.SetAttributes(toAttributes(keyValues)...)
}

// RecordError records err on span and marks it failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// EndSpan records *errp on span and ends it; meant for defer.
//
//	defer telemetry.EndSpan(span, &err)
func EndSpan(span trace.Span, errp *error) {
	if errp != nil {
		RecordError(span, *errp)
	}
	span.End()
}

func toAttributes(keyValues []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, toAttribute(key, keyValues[i+1]))
	}
	return attrs
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
