// Package main provides the main entry point for the daily quiz backend server.
// It sets up the HTTP server, database connections, middleware, and API routes.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"dailyquiz/internal/config"
	"dailyquiz/internal/di"
	"dailyquiz/internal/handlers"
	"dailyquiz/internal/observability"
	contextutils "dailyquiz/internal/utils"

	"github.com/joho/godotenv"
)

// Application encapsulates the main application logic and can be tested
type Application struct {
	container di.ServiceContainerInterface
	server    *http.Server
}

// NewApplication creates a new application instance
func NewApplication(container di.ServiceContainerInterface) (*Application, error) {
	quizService, err := container.GetDailyQuizService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get daily quiz service")
	}

	submissionService, err := container.GetSubmissionService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get submission service")
	}

	questionService, err := container.GetQuestionService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get question service")
	}

	stats, err := container.GetStatsRecorder()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get stats recorder")
	}

	cfg := container.GetConfig()
	router := handlers.NewRouter(
		cfg,
		quizService,
		submissionService,
		questionService,
		stats,
		container.GetDatabase(),
		observability.NewHTTPMetrics("server"),
		container.GetLogger(),
	)

	return &Application{
		container: container,
		server: &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           router,
			ReadHeaderTimeout: config.DefaultHTTPTimeout,
		},
	}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or the server fails
func (a *Application) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErr:
		return contextutils.WrapError(err, "server failed")
	}
}

// Shutdown drains in-flight requests, then releases the container's resources
func (a *Application) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, contextutils.WrapError(err, "http server shutdown"))
	}
	if err := a.container.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func main() {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	tp, mp, logger, err := observability.SetupObservabilityWithLevel(&cfg.OpenTelemetry, "dailyquiz-backend", cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.TelemetryFlushTimeout)
		defer shutdownCancel()

		if err := observability.ShutdownTracerProvider(shutdownCtx, tp); err != nil {
			logger.Warn(shutdownCtx, "Error shutting down tracer provider", map[string]interface{}{"error": err.Error(), "provider": "tracer"})
		}
		if mp != nil {
			if err := mp.Shutdown(shutdownCtx); err != nil {
				logger.Warn(shutdownCtx, "Error shutting down meter provider", map[string]interface{}{"error": err.Error(), "provider": "meter"})
			}
		}
		_ = logger.Sync()
	}()

	logger.Info(ctx, "Starting daily quiz backend service", map[string]interface{}{
		"port":     cfg.Server.Port,
		"logLevel": cfg.Server.LogLevel,
		"timezone": cfg.Quiz.Timezone,
		"subjects": cfg.Quiz.Subjects,
	})

	container := di.NewServiceContainer(cfg, logger)
	if err := container.Initialize(ctx); err != nil {
		logger.Error(ctx, "Failed to initialize services", err)
		os.Exit(1)
	}

	app, err := NewApplication(container)
	if err != nil {
		logger.Error(ctx, "Failed to create application", err)
		_ = container.Shutdown(context.Background())
		os.Exit(1)
	}

	runErr := app.Run(ctx)
	if runErr != nil {
		logger.Error(ctx, "Application failed", runErr)
	} else {
		logger.Info(context.Background(), "Received shutdown signal, shutting down gracefully")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "Error during application shutdown", err)
		os.Exit(1)
	}
	if runErr != nil {
		os.Exit(1)
	}

	logger.Info(shutdownCtx, "Shutdown completed successfully")
}
