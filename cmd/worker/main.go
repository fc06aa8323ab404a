// Package main provides the entry point for the daily quiz warm-up worker.
// The worker pre-creates each subject's assignment and serves a small status API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"dailyquiz/internal/config"
	"dailyquiz/internal/database"
	"dailyquiz/internal/di"
	"dailyquiz/internal/middleware"
	"dailyquiz/internal/observability"
	"dailyquiz/internal/version"
	"dailyquiz/internal/worker"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func fatalIfErr(ctx context.Context, logger *observability.Logger, msg string, err error, fields map[string]interface{}) {
	logger.Error(ctx, msg, err, fields)
	panic(msg + ": " + err.Error())
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	tp, mp, logger, err := observability.SetupObservabilityWithLevel(&cfg.OpenTelemetry, "dailyquiz-worker", cfg.Server.LogLevel)
	if err != nil {
		panic("Failed to initialize observability: " + err.Error())
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), config.TelemetryFlushTimeout)
		defer cancel()
		if err := observability.ShutdownTracerProvider(flushCtx, tp); err != nil {
			logger.Warn(flushCtx, "Error shutting down tracer provider", map[string]interface{}{"error": err.Error(), "provider": "tracer"})
		}
		if mp != nil {
			if err := mp.Shutdown(flushCtx); err != nil {
				logger.Warn(flushCtx, "Error shutting down meter provider", map[string]interface{}{"error": err.Error(), "provider": "meter"})
			}
		}
	}()

	logger.Info(ctx, "Starting daily quiz worker", map[string]interface{}{
		"port":           cfg.Server.WorkerPort,
		"logLevel":       cfg.Server.LogLevel,
		"interval":       cfg.Quiz.WarmupInterval.String(),
		"warm_preview":   cfg.Quiz.WarmTomorrowPreview,
		"subjects_count": len(cfg.Quiz.Subjects),
	})

	// Migrations are owned by the server and `adm db migrate`
	dbManager := database.NewManager(logger)
	db, err := dbManager.InitDBWithoutMigrations(cfg.Database)
	if err != nil {
		fatalIfErr(ctx, logger, "Failed to initialize database", err, map[string]interface{}{"port": cfg.Server.WorkerPort})
	}

	container := di.NewServiceContainer(cfg, logger)
	if err := container.InitializeWithDB(ctx, db); err != nil {
		fatalIfErr(ctx, logger, "Failed to initialize services", err, nil)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.WorkerShutdownTimeout)
		defer cancel()
		if err := container.Shutdown(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "Warning: container shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	quizService, err := container.GetDailyQuizService()
	if err != nil {
		fatalIfErr(ctx, logger, "Failed to get daily quiz service", err, nil)
	}

	workerInstance := worker.NewWorker(quizService, "default", cfg, logger)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		workerInstance.Start(ctx)
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.WorkerPort,
		Handler:           newStatusRouter(cfg, workerInstance, container.GetDatabase(), logger),
		ReadHeaderTimeout: config.DefaultHTTPTimeout,
	}

	go func() {
		logger.Info(ctx, "Worker server starting", map[string]interface{}{"port": cfg.Server.WorkerPort})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatalIfErr(ctx, logger, "Failed to start worker server", err, map[string]interface{}{"port": cfg.Server.WorkerPort})
		}
	}()

	<-ctx.Done()
	logger.Info(context.Background(), "Shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.WorkerShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "Worker server forced to shutdown", err)
	}

	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn(shutdownCtx, "Worker loop did not stop before the shutdown deadline")
	}

	logger.Info(shutdownCtx, "Worker exited")
}

// newStatusRouter exposes health, version, run status and a manual trigger
func newStatusRouter(cfg *config.Config, w *worker.Worker, db *sql.DB, logger *observability.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(func(c *gin.Context) {
		start := time.Now()

		c.Next()

		statusCode := c.Writer.Status()
		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.status_code": statusCode,
			"http.latency_ms":  time.Since(start).Milliseconds(),
			"http.client_ip":   c.ClientIP(),
		}
		if statusCode >= 500 {
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		} else if statusCode >= 400 {
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		} else {
			logger.Debug(c.Request.Context(), "HTTP request", fields)
		}
	})

	httpMetrics := observability.NewHTTPMetrics("worker")
	router.Use(httpMetrics.Middleware())
	router.GET("/metrics", gin.WrapH(httpMetrics.Handler(db)))

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), config.DatabasePingTimeout)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": "worker", "database": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "worker"})
	})

	router.Use(observability.GinMiddlewareWithErrorHandling("dailyquiz-worker")...)

	store := cookie.NewStore([]byte(cfg.Server.SessionSecret))
	router.Use(sessions.Sessions(config.SessionName, store))

	identity := middleware.IdentityOptions{TrustHeaders: cfg.Server.TrustIdentityHeaders}

	v1 := router.Group("/v1")
	{
		v1.GET("/version", func(c *gin.Context) {
			c.JSON(http.StatusOK, version.Get("worker"))
		})

		v1.GET("/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"instance": w.GetInstance(),
				"status":   w.GetStatus(),
				"history":  w.GetHistory(),
			})
		})

		admin := v1.Group("/admin")
		admin.Use(middleware.RequireAdmin(identity))
		{
			admin.POST("/trigger", func(c *gin.Context) {
				w.TriggerManualRun()
				c.JSON(http.StatusAccepted, gin.H{"triggered": true})
			})
		}
	}

	return router
}
