package observability

import (
	"context"

	"dailyquiz/internal/config"
	contextutils "dailyquiz/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics initializes OpenTelemetry metrics
func InitMetrics(cfg *config.OpenTelemetryConfig) (result0 *metric.MeterProvider, err error) {
	ctx := context.Background()

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var exporter metric.Exporter
	switch cfg.Protocol {
	case "grpc", "":
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
			otlpmetricgrpc.WithHeaders(cfg.Headers),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err = otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otlp grpc metric exporter: %w", err)
		}
	case "http":
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(cfg.Endpoint),
			otlpmetrichttp.WithHeaders(cfg.Headers),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err = otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otlp http metric exporter: %w", err)
		}
	default:
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unsupported otel protocol: %s", cfg.Protocol)
	}

	return metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter)),
		metric.WithResource(res),
	), nil
}

// QuizMetrics holds the engine's domain instruments. They record through the
// global meter provider, which is a no-op until InitMetrics output is installed.
type QuizMetrics struct {
	assignmentsCreated     otelmetric.Int64Counter
	assignmentsRegenerated otelmetric.Int64Counter
	attemptsSubmitted      otelmetric.Int64Counter
	validationFailures     otelmetric.Int64Counter
	cacheLookups           otelmetric.Int64Counter
	attemptScore           otelmetric.Int64Histogram
}

// NewQuizMetrics builds the instruments from the named meter on the global provider
func NewQuizMetrics() *QuizMetrics {
	return NewQuizMetricsFromProvider(otel.GetMeterProvider())
}

// NewQuizMetricsFromProvider builds the instruments from mp
func NewQuizMetricsFromProvider(mp otelmetric.MeterProvider) *QuizMetrics {
	meter := mp.Meter("dailyquiz")

	// instrument constructors only fail on invalid names, which are constants here
	m := &QuizMetrics{}
	m.assignmentsCreated, _ = meter.Int64Counter("dailyquiz.assignments.created",
		otelmetric.WithDescription("Daily assignments created on first read"))
	m.assignmentsRegenerated, _ = meter.Int64Counter("dailyquiz.assignments.regenerated",
		otelmetric.WithDescription("Assignments overwritten by a retry"))
	m.attemptsSubmitted, _ = meter.Int64Counter("dailyquiz.attempts.submitted",
		otelmetric.WithDescription("Quiz attempts stored"))
	m.validationFailures, _ = meter.Int64Counter("dailyquiz.attempts.rejected",
		otelmetric.WithDescription("Submissions rejected by validation"))
	m.cacheLookups, _ = meter.Int64Counter("dailyquiz.assignment_cache.lookups",
		otelmetric.WithDescription("Assignment cache lookups by result"))
	m.attemptScore, _ = meter.Int64Histogram("dailyquiz.attempts.score",
		otelmetric.WithDescription("Score per stored attempt"),
		otelmetric.WithExplicitBucketBoundaries(0, 1, 2, 3, 4, 5, 6))
	return m
}

// AssignmentCreated counts a first-time creation
func (m *QuizMetrics) AssignmentCreated(ctx context.Context, subject string, size int) {
	if m == nil {
		return
	}
	m.assignmentsCreated.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("subject", subject),
		attribute.Bool("empty", size == 0),
	))
}

// AssignmentRegenerated counts a retry
func (m *QuizMetrics) AssignmentRegenerated(ctx context.Context, subject string, version int) {
	if m == nil {
		return
	}
	m.assignmentsRegenerated.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("subject", subject),
		attribute.Int("quiz_version", version),
	))
}

// AttemptSubmitted counts a stored attempt and records its score
func (m *QuizMetrics) AttemptSubmitted(ctx context.Context, subject string, score int) {
	if m == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("subject", subject))
	m.attemptsSubmitted.Add(ctx, 1, attrs)
	m.attemptScore.Record(ctx, int64(score), attrs)
}

// SubmissionRejected counts a validation failure by reason code
func (m *QuizMetrics) SubmissionRejected(ctx context.Context, subject string, code contextutils.ErrorCode) {
	if m == nil {
		return
	}
	m.validationFailures.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("subject", subject),
		attribute.String("code", string(code)),
	))
}

// CacheLookup counts an assignment cache lookup; result is hit, miss or error
func (m *QuizMetrics) CacheLookup(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("result", result)))
}
