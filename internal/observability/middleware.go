package observability

import (
	"context"
	"errors"
	"sync"

	contextutils "dailyquiz/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// GinMiddleware creates OpenTelemetry middleware for Gin HTTP requests
func GinMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// GinMiddlewareWithErrorHandling returns otelgin followed by an annotator that, for
// 4xx/5xx responses, marks the request span with the AppError code, severity and
// caller label. Install with router.Use(GinMiddlewareWithErrorHandling(name)...).
//
// otelgin writes its own status after the chain returns ("" for 5xx, c.Errors.String()
// when errors were attached), so the request span is wrapped to keep the first
// described error status.
func GinMiddlewareWithErrorHandling(serviceName string) gin.HandlersChain {
	provider := statusGuardProvider{TracerProvider: otel.GetTracerProvider()}
	return gin.HandlersChain{
		otelgin.Middleware(serviceName, otelgin.WithTracerProvider(provider)),
		spanErrorAnnotator(),
	}
}

type statusGuardProvider struct {
	trace.TracerProvider
}

func (p statusGuardProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return statusGuardTracer{Tracer: p.TracerProvider.Tracer(name, opts...)}
}

type statusGuardTracer struct {
	trace.Tracer
}

func (t statusGuardTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	ctx, span := t.Tracer.Start(ctx, name, opts...)
	guarded := &statusGuardSpan{Span: span}
	return trace.ContextWithSpan(ctx, guarded), guarded
}

// statusGuardSpan ignores error statuses once one with a description was set
type statusGuardSpan struct {
	trace.Span

	mu        sync.Mutex
	described bool
}

func (s *statusGuardSpan) SetStatus(code codes.Code, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.described && code == codes.Error {
		return
	}
	if code == codes.Error && description != "" {
		s.described = true
	}
	s.Span.SetStatus(code, description)
}

// spanErrorAnnotator runs inside otelgin so the request span is on the context.
func spanErrorAnnotator() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		statusCode := c.Writer.Status()
		if statusCode < 400 {
			return
		}
		span := trace.SpanFromContext(c.Request.Context())
		if !span.SpanContext().IsValid() {
			return
		}

		severity := determineErrorSeverity(statusCode, c.Errors)
		errorMsg := "client error"
		if statusCode >= 500 {
			errorMsg = "server error"
		}

		var appErr *contextutils.AppError
		for _, ginErr := range c.Errors {
			if errors.As(ginErr.Err, &appErr) {
				errorMsg = appErr.Message
				break
			}
			errorMsg = ginErr.Error()
		}

		span.RecordError(errors.New(errorMsg), trace.WithStackTrace(statusCode >= 500))
		span.SetStatus(codes.Error, errorMsg)
		span.SetAttributes(
			attribute.Int("http.status_code", statusCode),
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.path", c.FullPath()),
			attribute.String("error.handler", c.HandlerName()),
			attribute.String("error.severity", severity),
			attribute.String("error.message", errorMsg),
		)
		if appErr != nil {
			span.SetAttributes(
				attribute.String("error.code", string(appErr.Code)),
				attribute.Bool("error.retryable", contextutils.IsRetryable(appErr)),
			)
		}
		if label := c.GetString(contextutils.UserLabelKey); label != "" {
			span.SetAttributes(AttributeUserLabel(label))
		}
		if statusCode >= 500 {
			span.SetAttributes(attribute.Bool("error.server_error", true))
		}
	}
}

// determineErrorSeverity determines the severity level based on status code and error types
func determineErrorSeverity(statusCode int, ginErrors []*gin.Error) string {
	var appErr *contextutils.AppError
	for _, ginErr := range ginErrors {
		if errors.As(ginErr.Err, &appErr) {
			return string(appErr.Severity)
		}
	}

	switch {
	case statusCode >= 500:
		return string(contextutils.SeverityError)
	case statusCode >= 400:
		return string(contextutils.SeverityWarn)
	default:
		return string(contextutils.SeverityInfo)
	}
}
