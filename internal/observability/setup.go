package observability

import (
	"context"
	"os"

	"dailyquiz/internal/config"

	autosdk "go.opentelemetry.io/auto/sdk"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
)

// SetupObservability initializes tracing, metrics, and logging for a service.
// Disabled signals return nil providers and a no-op logger.
func SetupObservability(cfg *config.OpenTelemetryConfig, serviceName string) (result0 trace.TracerProvider, result1 *metric.MeterProvider, result2 *Logger, err error) {
	return SetupObservabilityWithLevel(cfg, serviceName, "info")
}

// SetupObservabilityWithLevel is SetupObservability with an explicit log level
func SetupObservabilityWithLevel(cfg *config.OpenTelemetryConfig, serviceName, logLevel string) (result0 trace.TracerProvider, result1 *metric.MeterProvider, result2 *Logger, err error) {
	if serviceName != "" {
		cfg.ServiceName = serviceName
	}

	if err := os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName); err != nil {
		return nil, nil, nil, err
	}
	if err := os.Setenv("OTEL_SERVICE_VERSION", cfg.ServiceVersion); err != nil {
		return nil, nil, nil, err
	}

	logger := NewLoggerWithLevel(cfg, ParseLevel(logLevel))
	ctx := context.Background()

	var tp trace.TracerProvider
	if cfg.EnableTracing {
		if cfg.UseAutoSDK {
			tp = autosdk.TracerProvider()
			logger.Info(ctx, "Tracing enabled with Auto SDK", map[string]interface{}{"service_name": cfg.ServiceName})
		} else {
			sdkTP, err := InitStandardTracing(cfg)
			if err != nil {
				return nil, nil, logger, err
			}
			tp = sdkTP
			logger.Info(ctx, "Tracing enabled with standard SDK", map[string]interface{}{"service_name": cfg.ServiceName})
		}
		otel.SetTracerProvider(tp)
		InitTracing()
		InitGlobalTracer()
	}

	var mp *metric.MeterProvider
	if cfg.EnableMetrics {
		mp, err = InitMetrics(cfg)
		if err != nil {
			return tp, nil, logger, err
		}
		otel.SetMeterProvider(mp)
		logger.Info(ctx, "Metrics export enabled", map[string]interface{}{"protocol": cfg.Protocol})
	}

	return tp, mp, logger, nil
}
