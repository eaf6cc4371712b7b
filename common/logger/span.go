package logger

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "hyperscribe"

// SpanContext wraps an OTel span for managed lifecycle.
type SpanContext struct {
	ctx  context.Context
	span trace.Span
}

// StartSpan creates a child span of the current trace context. The span is
// tagged with the LogFields of ctx so traces and logs share the discussion,
// cycle and track.
//
//	sc := logger.StartSpan(ctx, "cycle.run")
//	defer sc.End()
//	ctx = sc.Context()
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) *SpanContext {
	opts = append(opts, trace.WithAttributes(FieldAttributes(GetLogFields(ctx))...))
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, opts...)
	return &SpanContext{ctx: ctx, span: span}
}

// StartSpanFromTraceID starts a span under a trace id carried across a
// process boundary, such as a chunk message. An empty or malformed id starts
// a span with no remote parent.
func StartSpanFromTraceID(ctx context.Context, traceIDStr string, name string, opts ...trace.SpanStartOption) *SpanContext {
	if traceID, err := trace.TraceIDFromHex(traceIDStr); err == nil {
		remote := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    traceID,
			TraceFlags: trace.FlagsSampled,
			Remote:     true,
		})
		opts = append(opts, trace.WithLinks(trace.Link{SpanContext: remote}))
		ctx = trace.ContextWithRemoteSpanContext(ctx, remote)
	}
	return StartSpan(ctx, name, opts...)
}

// Context returns the context with the span attached.
func (sc *SpanContext) Context() context.Context {
	return sc.ctx
}

// End completes the span. Safe to call multiple times.
func (sc *SpanContext) End() {
	if sc.span != nil {
		sc.span.End()
	}
}

// RecordError records err on the span and marks the span failed.
func (sc *SpanContext) RecordError(err error) {
	if sc.span != nil && err != nil {
		sc.span.RecordError(err)
		sc.span.SetStatus(codes.Error, err.Error())
	}
}

func (sc *SpanContext) SetAttributes(kv ...attribute.KeyValue) {
	if sc.span != nil {
		sc.span.SetAttributes(kv...)
	}
}

// Span returns the underlying OTel span.
func (sc *SpanContext) Span() trace.Span {
	return sc.span
}

// FieldAttributes renders the set LogFields as span attributes.
func FieldAttributes(f LogFields) []attribute.KeyValue {
	var kv []attribute.KeyValue
	if f.DiscussionID != nil {
		kv = append(kv, attribute.String("scribe.discussion_id", *f.DiscussionID))
	}
	if f.Cycle != nil {
		kv = append(kv, attribute.Int("scribe.cycle", *f.Cycle))
	}
	if f.MessageID != nil {
		kv = append(kv, attribute.String("scribe.message_id", *f.MessageID))
	}
	if f.ChunkIndex != nil {
		kv = append(kv, attribute.Int("scribe.chunk_index", *f.ChunkIndex))
	}
	if f.Track != nil {
		kv = append(kv, attribute.String("scribe.track", *f.Track))
	}
	if f.InstructionUUID != nil {
		kv = append(kv, attribute.String("scribe.instruction_uuid", *f.InstructionUUID))
	}
	if f.InstructionType != nil {
		kv = append(kv, attribute.String("scribe.instruction_type", *f.InstructionType))
	}
	return kv
}
