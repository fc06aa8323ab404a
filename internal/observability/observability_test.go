package observability

import (
	"context"
	"os"
	"reflect"
	"testing"
	"time"

	"dailyquiz/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	autosdk "go.opentelemetry.io/auto/sdk"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// restoreGlobals puts the global providers back after a test swaps them
func restoreGlobals(t *testing.T) {
	tp := otel.GetTracerProvider()
	mp := otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
		globalTracer = nil
	})
}

func TestSetupObservability_NoneEnabled(t *testing.T) {
	cfg := &config.OpenTelemetryConfig{ServiceName: "test-service", Protocol: "grpc"}
	tp, mp, logger, err := SetupObservability(cfg, "test-service")
	require.NoError(t, err)
	assert.Nil(t, tp)
	assert.Nil(t, mp)
	require.NotNil(t, logger)
}

func TestSetupObservability_StandardSDK(t *testing.T) {
	restoreGlobals(t)
	cfg := &config.OpenTelemetryConfig{
		EnableTracing:  true,
		EnableMetrics:  true,
		ServiceVersion: "1.0.0",
		Protocol:       "grpc",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SamplingRate:   1.0,
	}
	collector := os.Getenv("OTEL_TEST_COLLECTOR_ENDPOINT")
	if collector != "" {
		cfg.Endpoint = collector
	}
	tp, mp, logger, err := SetupObservability(cfg, "dailyquiz-test")
	require.NoError(t, err)
	require.NotNil(t, logger)
	require.NotNil(t, mp)
	_, isStandardSDK := tp.(*sdktrace.TracerProvider)
	assert.True(t, isStandardSDK)
	assert.Equal(t, "dailyquiz-test", cfg.ServiceName)

	if collector != "" {
		ctx := context.Background()
		assert.NoError(t, ShutdownTracerProvider(ctx, tp))
		assert.NoError(t, mp.Shutdown(ctx))
		return
	}

	// No collector: the final export fails, shutdown must still honour the deadline
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	_ = ShutdownTracerProvider(ctx, tp)
	_ = mp.Shutdown(ctx)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSetupObservability_AutoSDK(t *testing.T) {
	restoreGlobals(t)
	cfg := &config.OpenTelemetryConfig{
		EnableTracing:  true,
		UseAutoSDK:     true,
		ServiceVersion: "1.0.0",
	}
	tp, _, _, err := SetupObservability(cfg, "test-service")
	require.NoError(t, err)
	require.NotNil(t, tp)
	assert.Equal(t, reflect.TypeOf(autosdk.TracerProvider()), reflect.TypeOf(tp))

	// non-SDK providers are not shut down
	assert.NoError(t, ShutdownTracerProvider(context.Background(), tp))
}

func TestInitStandardTracing_Protocols(t *testing.T) {
	for _, proto := range []string{"grpc", "http"} {
		t.Run(proto, func(t *testing.T) {
			tp, err := InitStandardTracing(&config.OpenTelemetryConfig{
				ServiceName:  "test-service",
				Protocol:     proto,
				Endpoint:     "localhost:4318",
				Insecure:     true,
				SamplingRate: 0.5,
			})
			require.NoError(t, err)
			require.NotNil(t, tp)
			require.NoError(t, tp.Shutdown(context.Background()))
		})
	}

	tp, err := InitStandardTracing(&config.OpenTelemetryConfig{Protocol: "carrier-pigeon"})
	require.Error(t, err)
	assert.Nil(t, tp)
	assert.Contains(t, err.Error(), "unsupported otel protocol")
}

func TestInitMetrics_InvalidProtocol(t *testing.T) {
	mp, err := InitMetrics(&config.OpenTelemetryConfig{Protocol: "smoke-signal"})
	require.Error(t, err)
	assert.Nil(t, mp)
}

func TestQuizMetrics_Records(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := NewQuizMetricsFromProvider(mp)
	ctx := context.Background()

	m.AssignmentCreated(ctx, "biology", 6)
	m.AssignmentCreated(ctx, "physics", 0)
	m.AssignmentRegenerated(ctx, "biology", 2)
	m.AttemptSubmitted(ctx, "biology", 4)
	m.SubmissionRejected(ctx, "biology", "VALIDATION_FAILED")
	m.CacheLookup(ctx, "hit")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	sums := map[string]int64{}
	for _, md := range rm.ScopeMetrics[0].Metrics {
		if s, ok := md.Data.(metricdata.Sum[int64]); ok {
			for _, dp := range s.DataPoints {
				sums[md.Name] += dp.Value
			}
		}
		if h, ok := md.Data.(metricdata.Histogram[int64]); ok {
			require.Len(t, h.DataPoints, 1)
			assert.Equal(t, uint64(1), h.DataPoints[0].Count)
			assert.Equal(t, int64(4), h.DataPoints[0].Sum)
		}
	}
	assert.Equal(t, int64(2), sums["dailyquiz.assignments.created"])
	assert.Equal(t, int64(1), sums["dailyquiz.assignments.regenerated"])
	assert.Equal(t, int64(1), sums["dailyquiz.attempts.submitted"])
	assert.Equal(t, int64(1), sums["dailyquiz.attempts.rejected"])
	assert.Equal(t, int64(1), sums["dailyquiz.assignment_cache.lookups"])
}

func TestQuizMetrics_NilSafe(t *testing.T) {
	var m *QuizMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.AssignmentCreated(ctx, "biology", 1)
		m.AssignmentRegenerated(ctx, "biology", 2)
		m.AttemptSubmitted(ctx, "biology", 3)
		m.SubmissionRejected(ctx, "biology", "X")
		m.CacheLookup(ctx, "miss")
	})
}

func TestTraceFunctionWithErrorHandling(t *testing.T) {
	restoreGlobals(t)
	rec := newRecordingProvider(t)

	err := TraceFunctionWithErrorHandling(context.Background(), "quiz", "ok", func(context.Context) error { return nil })
	require.NoError(t, err)

	boom := assert.AnError
	err = TraceFunctionWithErrorHandling(context.Background(), "quiz", "fails", func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)

	assert.Panics(t, func() {
		_ = TraceFunctionWithErrorHandling(context.Background(), "quiz", "panics", func(context.Context) error { panic("x") })
	})

	spans := rec.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "quiz.ok", spans[0].Name())
	assert.Equal(t, "quiz.fails", spans[1].Name())
	assert.Equal(t, "Error", spans[1].Status().Code.String())
	assert.Equal(t, "quiz.panics", spans[2].Name())
}
