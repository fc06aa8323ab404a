package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "dailyquiz"

var globalTracer trace.Tracer

// InitGlobalTracer binds the package tracer to the current global provider.
func InitGlobalTracer() {
	globalTracer = otel.Tracer(tracerName)
}

// GetGlobalTracer returns the global tracer instance for the application.
func GetGlobalTracer() trace.Tracer {
	if globalTracer == nil {
		return otel.Tracer(tracerName)
	}
	return globalTracer
}

// TraceFunction starts a new span named "{serviceName}.{functionName}".
func TraceFunction(ctx context.Context, serviceName, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	spanName := fmt.Sprintf("%s.%s", serviceName, functionName)
	return GetGlobalTracer().Start(ctx, spanName, trace.WithAttributes(attributes...))
}

// TraceFunctionWithErrorHandling runs fn inside a span and marks the span on error or panic.
func TraceFunctionWithErrorHandling(ctx context.Context, serviceName, functionName string, fn func(context.Context) error, attributes ...attribute.KeyValue) (err error) {
	ctx, span := TraceFunction(ctx, serviceName, functionName, attributes...)
	defer func() {
		if r := recover(); r != nil {
			span.SetAttributes(
				attribute.Bool("error", true),
				attribute.String("error.type", "panic"),
				attribute.String("error.message", fmt.Sprintf("%v", r)),
			)
			span.End()
			panic(r)
		}
		FinishSpan(span, &err)
	}()

	return fn(ctx)
}

// TraceQuizFunction starts a new span for the daily assignment manager.
func TraceQuizFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "quiz", functionName, attributes...)
}

// TraceSelectionFunction starts a new span for the question selector.
func TraceSelectionFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "selection", functionName, attributes...)
}

// TraceSubmissionFunction starts a new span for attempt submission.
func TraceSubmissionFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "submission", functionName, attributes...)
}

// TraceQuestionFunction starts a new span for a question repository function.
func TraceQuestionFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "question", functionName, attributes...)
}

// TraceWorkerFunction starts a new span for a worker function.
func TraceWorkerFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "worker", functionName, attributes...)
}

// TraceHandlerFunction starts a new span for a handler function.
func TraceHandlerFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "handler", functionName, attributes...)
}

// TraceDatabaseFunction starts a new span for a database function.
func TraceDatabaseFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "database", functionName, attributes...)
}

// TraceCacheFunction starts a new span for an assignment cache function.
func TraceCacheFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "cache", functionName, attributes...)
}

// AttributeSubject returns a tracing attribute for a subject.
func AttributeSubject(subject string) attribute.KeyValue {
	return attribute.String("quiz.subject", subject)
}

// AttributeDate returns a tracing attribute for a day key.
func AttributeDate(date string) attribute.KeyValue {
	return attribute.String("quiz.date", date)
}

// AttributeQuizVersion returns a tracing attribute for an assignment version.
func AttributeQuizVersion(version int) attribute.KeyValue {
	return attribute.Int("quiz.version", version)
}

// AttributeQuestionID returns a tracing attribute for a question ID.
func AttributeQuestionID(id string) attribute.KeyValue {
	return attribute.String("question.id", id)
}

// AttributeUserLabel returns a tracing attribute for the caller's label.
func AttributeUserLabel(label string) attribute.KeyValue {
	return attribute.String("user.label", label)
}

// AttributeCount returns a tracing attribute for a generic count.
func AttributeCount(name string, n int) attribute.KeyValue {
	return attribute.Int(name, n)
}
