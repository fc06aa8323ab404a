package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"dailyquiz/internal/config"
	"dailyquiz/internal/middleware"
	"dailyquiz/internal/observability"
	"dailyquiz/internal/services"
	"dailyquiz/internal/version"
)

// When adding new API endpoints, decide whether they belong behind RequireAuth or RequireAdmin.

// NewRouter creates a new router factory with all the necessary middleware and routes.
// db is used by /health and for pool stats on /metrics; it may be nil in tests.
func NewRouter(
	cfg *config.Config,
	quizService services.DailyQuizServiceInterface,
	submissionService services.SubmissionServiceInterface,
	questionService services.QuestionServiceInterface,
	stats services.StatsRecorder,
	db *sql.DB,
	httpMetrics *observability.HTTPMetrics,
	logger *observability.Logger,
) *gin.Engine {
	// Setup Gin mode
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// Add HTTP request logging middleware using our observability logger
	router.Use(func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.status_code": statusCode,
			"http.latency_ms":  latency.Milliseconds(),
			"http.client_ip":   c.ClientIP(),
			"http.user_agent":  c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			fields["http.error"] = c.Errors.String()
		}
		if statusCode >= 400 {
			fields["http.response_size"] = c.Writer.Size()
			if statusCode >= 500 {
				fields["http.error_type"] = "server_error"
			} else {
				fields["http.error_type"] = "client_error"
			}
		}

		if statusCode >= 500 {
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		} else if statusCode >= 400 {
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		} else {
			logger.Info(c.Request.Context(), "HTTP request", fields)
		}
	})

	if httpMetrics != nil {
		router.Use(httpMetrics.Middleware())
		router.GET("/metrics", gin.WrapH(httpMetrics.Handler(db)))
	}

	// Health check endpoint (defined before any middleware)
	router.GET("/health", func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), config.DatabasePingTimeout)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				logger.Error(ctx, "Health check database ping failed", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": "dailyquiz", "database": "down"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "dailyquiz"})
	})

	// Add OpenTelemetry middleware for HTTP tracing and context propagation with automatic error attributes
	router.Use(observability.GinMiddlewareWithErrorHandling("dailyquiz-backend")...)

	// Disable automatic redirection for trailing slashes, which is better for APIs
	router.RedirectTrailingSlash = false

	// Setup CORS middleware
	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.CORSOrigins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Setup session middleware
	store := cookie.NewStore([]byte(cfg.Server.SessionSecret))
	sessionOpts := sessions.Options{
		Path:     config.SessionPath,
		MaxAge:   int(config.SessionMaxAge.Seconds()),
		HttpOnly: config.SessionHTTPOnly,
		Secure:   config.SessionSecure,
	}
	if cfg.Server.Debug {
		sessionOpts.SameSite = http.SameSiteDefaultMode
	} else {
		sessionOpts.SameSite = http.SameSiteLaxMode
		sessionOpts.Secure = true
	}
	store.Options(sessionOpts)
	router.Use(sessions.Sessions(config.SessionName, store))

	// Security middleware
	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.IsDevelopment = cfg.Server.Debug
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	identity := middleware.IdentityOptions{TrustHeaders: cfg.Server.TrustIdentityHeaders}

	// Initialize handlers
	quizHandler := NewDailyQuizHandler(quizService, submissionService, logger)
	adminHandler := NewAdminHandlerWithLogger(questionService, stats, logger)
	sessionHandler := NewSessionHandler(cfg, logger)

	v1 := router.Group("/v1")
	{
		v1.GET("/version", func(c *gin.Context) {
			c.JSON(http.StatusOK, version.Get("dailyquiz"))
		})

		// Development sign-in; production identity comes from the upstream auth layer
		if cfg.Server.Debug {
			v1.POST("/session", sessionHandler.SignIn)
			v1.DELETE("/session", sessionHandler.SignOut)
		}

		quiz := v1.Group("/quiz/:subject")
		quiz.Use(middleware.RequireAuth(identity))
		{
			quiz.GET("/today", quizHandler.GetToday)
			quiz.POST("/retry", quizHandler.Retry)
			quiz.POST("/attempts", quizHandler.SubmitAttempt)
			quiz.GET("/attempts", quizHandler.ListAttempts)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.RequireAdmin(identity))
		{
			admin.GET("/quiz/:subject/preview", quizHandler.GetPreview)

			admin.GET("/questions", adminHandler.ListQuestions)
			admin.POST("/questions", adminHandler.CreateQuestion)
			admin.GET("/questions/:id", adminHandler.GetQuestion)
			admin.PUT("/questions/:id", adminHandler.UpdateQuestion)
			admin.DELETE("/questions/:id", adminHandler.DeactivateQuestion)

			admin.GET("/stats/:userLabel", adminHandler.GetUserStats)
			admin.DELETE("/stats/:userLabel", adminHandler.DeleteUserStats)
		}
	}

	return router
}
