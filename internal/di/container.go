// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"dailyquiz/internal/config"
	"dailyquiz/internal/database"
	"dailyquiz/internal/observability"
	"dailyquiz/internal/services"
	contextutils "dailyquiz/internal/utils"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetDailyQuizService() (services.DailyQuizServiceInterface, error)
	GetSubmissionService() (services.SubmissionServiceInterface, error)
	GetQuestionService() (services.QuestionServiceInterface, error)
	GetStatsRecorder() (services.StatsRecorder, error)
	GetQuestionImporter() (*services.QuestionImporter, error)
	GetDatabase() *sql.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	GetQuizMetrics() *observability.QuizMetrics
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	metrics       *observability.QuizMetrics
	clock         contextutils.Clock
	dbManager     *database.Manager
	db            *sql.DB
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		metrics:  observability.NewQuizMetrics(),
		clock:    contextutils.SystemClock{},
		services: make(map[string]interface{}),
	}
}

// WithClock replaces the wall clock used for day keys and timestamps. Call before Initialize.
func (sc *ServiceContainer) WithClock(clock contextutils.Clock) *ServiceContainer {
	sc.clock = clock
	return sc
}

// Initialize opens the database, runs migrations and wires every service
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.dbManager = database.NewManager(sc.logger)
	db, err := sc.dbManager.InitDBWithConfig(sc.cfg.Database)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize database")
	}
	return sc.InitializeWithDB(ctx, db)
}

// InitializeWithDB wires every service on an already open database. The container takes ownership of db.
func (sc *ServiceContainer) InitializeWithDB(ctx context.Context, db *sql.DB) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.db = db
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})

	if err := sc.initializeServices(ctx); err != nil {
		_ = sc.cleanup(ctx)
		return contextutils.WrapErrorf(err, "failed to initialize services")
	}
	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetDailyQuizService returns the daily assignment manager
func (sc *ServiceContainer) GetDailyQuizService() (services.DailyQuizServiceInterface, error) {
	return GetServiceAs[services.DailyQuizServiceInterface](sc, "daily_quiz")
}

// GetSubmissionService returns the submission service
func (sc *ServiceContainer) GetSubmissionService() (services.SubmissionServiceInterface, error) {
	return GetServiceAs[services.SubmissionServiceInterface](sc, "submission")
}

// GetQuestionService returns the question service
func (sc *ServiceContainer) GetQuestionService() (services.QuestionServiceInterface, error) {
	return GetServiceAs[services.QuestionServiceInterface](sc, "question")
}

// GetStatsRecorder returns the question stats recorder
func (sc *ServiceContainer) GetStatsRecorder() (services.StatsRecorder, error) {
	return GetServiceAs[services.StatsRecorder](sc, "stats")
}

// GetQuestionImporter returns the YAML question importer
func (sc *ServiceContainer) GetQuestionImporter() (*services.QuestionImporter, error) {
	return GetServiceAs[*services.QuestionImporter](sc, "question_importer")
}

// GetDatabase returns the database instance
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// GetQuizMetrics returns the domain metrics
func (sc *ServiceContainer) GetQuizMetrics() *observability.QuizMetrics {
	return sc.metrics
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// cleanup runs shutdown functions in reverse order of registration
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errors []error

	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			sc.logger.Error(ctx, "Shutdown step failed", err)
			errors = append(errors, err)
		}
	}
	sc.shutdownFuncs = nil

	if len(errors) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errors)
	}
	return nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices(ctx context.Context) error {
	loc, err := sc.cfg.Location()
	if err != nil {
		return err
	}
	day := contextutils.NewDay(sc.clock, loc)

	// Repositories
	questionRepo := services.NewPostgresQuestionRepository(sc.db, sc.logger, sc.cfg.Quiz.FetchChunkSize)
	assignmentRepo := services.NewPostgresAssignmentRepository(sc.db, sc.logger)
	attemptRepo := services.NewPostgresAttemptRepository(sc.db, sc.logger)
	stats := services.NewPostgresStatsRecorder(sc.db, sc.logger, sc.clock)
	sc.services["stats"] = stats

	// Optional Redis cache in front of the assignment store
	cache, err := services.NewAssignmentCache(ctx, sc.cfg.Redis, sc.logger, sc.metrics)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize assignment cache")
	}
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return cache.Close()
	})

	// Selection depends on the usage history
	history := services.NewUsageHistory(assignmentRepo, attemptRepo, day)
	selector := services.NewSelector(questionRepo, history, sc.cfg.Quiz.RepeatAvoidDays,
		services.NewRandomizer(time.Now().UnixNano()), sc.logger)

	dailyQuiz := services.NewDailyQuizService(assignmentRepo, questionRepo, history, selector, cache,
		day, sc.cfg.Quiz.Subjects, sc.logger, sc.metrics)
	sc.services["daily_quiz"] = dailyQuiz

	submission := services.NewSubmissionService(dailyQuiz, questionRepo, attemptRepo, stats,
		day, sc.cfg.Server.IPHashSalt, sc.logger, sc.metrics)
	sc.services["submission"] = submission

	questionService := services.NewQuestionServiceWithLogger(questionRepo, sc.cfg.Quiz.Subjects, sc.clock, sc.logger)
	sc.services["question"] = questionService

	importer, err := services.NewQuestionImporter(questionService, sc.logger)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to load question import schema")
	}
	sc.services["question_importer"] = importer

	sc.logger.Info(ctx, "Services initialized", map[string]interface{}{
		"timezone":          loc.String(),
		"subjects":          sc.cfg.Quiz.Subjects,
		"repeat_avoid_days": sc.cfg.Quiz.RepeatAvoidDays,
		"cache_enabled":     sc.cfg.Redis.URL != "",
	})
	return nil
}
