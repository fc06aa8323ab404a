package observability

import (
	contextutils "dailyquiz/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// FinishSpan ends a span and records any error pointed to by errPtr.
// Use with a named error return: `defer observability.FinishSpan(span, &err)`
//
// Every error is tagged with its error.code. Only error and fatal severities
// mark the span failed with a stack trace; a rejected submission or an empty
// subject is an expected outcome, not a fault.
func FinishSpan(span trace.Span, errPtr *error) {
	if span == nil {
		return
	}
	if errPtr != nil && *errPtr != nil {
		err := *errPtr
		span.SetAttributes(attribute.String("error.code", string(contextutils.GetErrorCode(err))))
		switch contextutils.GetErrorSeverity(err) {
		case contextutils.SeverityError, contextutils.SeverityFatal:
			span.RecordError(err, trace.WithStackTrace(true))
			span.SetStatus(codes.Error, err.Error())
		default:
			span.RecordError(err)
		}
	}
	span.End()
}
