package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	attrPhase  = attribute.Key("crankdb.phase")
	attrWorker = attribute.Key("crankdb.worker")
	attrSeq    = attribute.Key("crankdb.seq")
	attrWarmup = attribute.Key("crankdb.warmup")
	attrBytes  = attribute.Key("crankdb.bytes")
	attrItems  = attribute.Key("crankdb.items")
)

// StartPhaseSpan starts a span covering one run phase (run, setup, teardown).
func StartPhaseSpan(ctx context.Context, tracer trace.Tracer, phase string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "crankdb "+phase)
	span.SetAttributes(attrPhase.String(phase))
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

// StartIterationSpan starts a span for one iteration of a worker.
func StartIterationSpan(ctx context.Context, tracer trace.Tracer, worker int, seq uint64, warmup bool) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "crankdb iteration",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attrWorker.Int(worker),
		attrSeq.Int64(int64(seq)),
		attrWarmup.Bool(warmup),
	)
	return ctx, span
}

// IterationVolume returns the attributes recording what an iteration moved.
func IterationVolume(bytes, items uint64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attrBytes.Int64(int64(bytes)),
		attrItems.Int64(int64(items)),
	}
}

// AnnotateStatement tags the span in ctx with the database operation it runs.
func AnnotateStatement(ctx context.Context, system, operation, table string) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(
		attribute.String("db.system", system),
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", table),
	)
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
