package services

import (
	"context"
	"fmt"

	"dailyquiz/internal/models"
	"dailyquiz/internal/observability"
	contextutils "dailyquiz/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// DailyQuizServiceInterface defines the daily assignment operations
type DailyQuizServiceInterface interface {
	GetOrCreate(ctx context.Context, subject string) (*models.DailyAssignment, error)
	Regenerate(ctx context.Context, subject string) (*models.DailyAssignment, error)
	GetTodayQuiz(ctx context.Context, subject string) (*models.DailyQuiz, error)
	ResolveAssignment(ctx context.Context, a *models.DailyAssignment) (*models.DailyQuiz, error)
	GenerateTomorrowPreview(ctx context.Context, subject string) (*models.Preview, error)
	Subjects() []string
}

// DailyQuizService owns the DailyAssignment records
type DailyQuizService struct {
	assignments AssignmentRepository
	questions   QuestionRepository
	history     UsageHistoryReader
	selector    QuestionSelector
	cache       AssignmentCache
	day         *contextutils.Day
	subjects    []string
	logger      *observability.Logger
	metrics     *observability.QuizMetrics
}

// NewDailyQuizService creates a new DailyQuizService. A nil cache disables caching.
func NewDailyQuizService(
	assignments AssignmentRepository,
	questions QuestionRepository,
	history UsageHistoryReader,
	selector QuestionSelector,
	cache AssignmentCache,
	day *contextutils.Day,
	subjects []string,
	logger *observability.Logger,
	metrics *observability.QuizMetrics,
) *DailyQuizService {
	if cache == nil {
		cache = NoopAssignmentCache{metrics: metrics}
	}
	return &DailyQuizService{
		assignments: assignments,
		questions:   questions,
		history:     history,
		selector:    selector,
		cache:       cache,
		day:         day,
		subjects:    append([]string(nil), subjects...),
		logger:      logger,
		metrics:     metrics,
	}
}

// Subjects returns the configured subjects
func (s *DailyQuizService) Subjects() []string {
	return append([]string(nil), s.subjects...)
}

// checkSubject rejects subjects outside the configured set
func (s *DailyQuizService) checkSubject(subject string) error {
	for _, sub := range s.subjects {
		if sub == subject {
			return nil
		}
	}
	return unsupportedSubject(subject)
}

func unsupportedSubject(subject string) *contextutils.AppError {
	return contextutils.NewAppError(contextutils.ErrorCodeUnsupportedSubject, contextutils.SeverityWarn,
		fmt.Sprintf("unsupported subject %q", subject), "")
}

// GetOrCreate returns today's assignment for subject, creating it exactly once
func (s *DailyQuizService) GetOrCreate(ctx context.Context, subject string) (result0 *models.DailyAssignment, err error) {
	date := s.day.Today()
	ctx, span := observability.TraceQuizFunction(ctx, "GetOrCreate",
		observability.AttributeSubject(subject), observability.AttributeDate(date))
	defer observability.FinishSpan(span, &err)

	if err := s.checkSubject(subject); err != nil {
		return nil, err
	}
	return s.getOrCreateFor(ctx, date, subject, nil)
}

// getOrCreateFor is the idempotent create path for any date. exclude is only computed on a miss.
func (s *DailyQuizService) getOrCreateFor(ctx context.Context, date, subject string, exclude func(context.Context) (IDSet, error)) (*models.DailyAssignment, error) {
	if cached, ok := s.cache.Get(ctx, date, subject); ok {
		return s.forDisplay(cached), nil
	}

	existing, err := s.assignments.Get(ctx, date, subject)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.cache.Fill(ctx, existing)
		s.logger.Debug(ctx, "Reusing daily assignment", map[string]interface{}{
			"key":          existing.Key(),
			"quiz_version": existing.QuizVersion,
		})
		return s.forDisplay(existing), nil
	}

	var excludeIDs IDSet
	if exclude != nil {
		if excludeIDs, err = exclude(ctx); err != nil {
			return nil, err
		}
	}

	picked, err := s.selector.Select(ctx, subject, excludeIDs)
	if err != nil {
		return nil, err
	}

	now := s.day.Now()
	candidate := &models.DailyAssignment{
		Date:        date,
		Subject:     subject,
		QuizVersion: 1,
		GeneratedAt: &now,
		QuestionIDs: questionIDs(picked),
	}

	stored, created, err := s.assignments.CreateIfAbsent(ctx, candidate)
	if err != nil {
		return nil, err
	}
	s.cache.Fill(ctx, stored)

	if created {
		s.metrics.AssignmentCreated(ctx, subject, len(stored.QuestionIDs))
		s.logger.Info(ctx, "Daily assignment created", map[string]interface{}{
			"key":       stored.Key(),
			"questions": len(stored.QuestionIDs),
		})
		if stored.IsEmpty() {
			s.logger.Warn(ctx, "Daily assignment created with no questions", map[string]interface{}{"key": stored.Key()})
		}
	} else {
		s.logger.Info(ctx, "Daily assignment created concurrently, using stored record", map[string]interface{}{
			"key":          stored.Key(),
			"quiz_version": stored.QuizVersion,
		})
	}
	return s.forDisplay(stored), nil
}

// Regenerate replaces today's assignment with a new version that avoids today's content
func (s *DailyQuizService) Regenerate(ctx context.Context, subject string) (result0 *models.DailyAssignment, err error) {
	date := s.day.Today()
	ctx, span := observability.TraceQuizFunction(ctx, "Regenerate",
		observability.AttributeSubject(subject), observability.AttributeDate(date))
	defer observability.FinishSpan(span, &err)

	if err := s.checkSubject(subject); err != nil {
		return nil, err
	}

	current, err := s.assignments.Get(ctx, date, subject)
	if err != nil {
		return nil, err
	}

	exclude, err := s.history.TodayAttemptIDs(ctx, subject)
	if err != nil {
		return nil, err
	}
	if exclude == nil {
		exclude = make(IDSet)
	}
	version := 1
	if current != nil {
		exclude.AddAll(current.QuestionIDs)
		version = current.QuizVersion + 1
	}

	picked, err := s.selector.Select(ctx, subject, exclude)
	if err != nil {
		return nil, err
	}

	now := s.day.Now()
	next := &models.DailyAssignment{
		Date:        date,
		Subject:     subject,
		QuizVersion: version,
		GeneratedAt: &now,
		QuestionIDs: questionIDs(picked),
	}
	if err := s.assignments.Upsert(ctx, next); err != nil {
		return nil, err
	}
	s.cache.Put(ctx, next)

	span.SetAttributes(observability.AttributeQuizVersion(version), attribute.Int("excluded", len(exclude)))
	s.metrics.AssignmentRegenerated(ctx, subject, version)
	s.logger.Info(ctx, "Daily assignment regenerated", map[string]interface{}{
		"key":          next.Key(),
		"quiz_version": version,
		"questions":    len(next.QuestionIDs),
		"excluded":     len(exclude),
	})
	return next.Clone(), nil
}

// GetTodayQuiz returns today's assignment with its questions resolved in order.
// Ids that no longer resolve are dropped.
func (s *DailyQuizService) GetTodayQuiz(ctx context.Context, subject string) (result0 *models.DailyQuiz, err error) {
	ctx, span := observability.TraceQuizFunction(ctx, "GetTodayQuiz", observability.AttributeSubject(subject))
	defer observability.FinishSpan(span, &err)

	a, err := s.GetOrCreate(ctx, subject)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, a)
}

// ResolveAssignment loads the question bodies for an assignment
func (s *DailyQuizService) ResolveAssignment(ctx context.Context, a *models.DailyAssignment) (*models.DailyQuiz, error) {
	return s.resolve(ctx, a)
}

func (s *DailyQuizService) resolve(ctx context.Context, a *models.DailyAssignment) (*models.DailyQuiz, error) {
	questions, err := s.questions.FetchByIDs(ctx, a.QuestionIDs)
	if err != nil {
		return nil, err
	}
	if len(questions) < len(a.QuestionIDs) {
		s.logger.Warn(ctx, "Assignment has questions that no longer resolve", map[string]interface{}{
			"key":      a.Key(),
			"stored":   len(a.QuestionIDs),
			"resolved": len(questions),
		})
	}
	return &models.DailyQuiz{Assignment: a, Questions: questions}, nil
}

// GenerateTomorrowPreview returns tomorrow's assignment, creating it once with today's ids excluded
func (s *DailyQuizService) GenerateTomorrowPreview(ctx context.Context, subject string) (result0 *models.Preview, err error) {
	tomorrow := s.day.Tomorrow()
	ctx, span := observability.TraceQuizFunction(ctx, "GenerateTomorrowPreview",
		observability.AttributeSubject(subject), observability.AttributeDate(tomorrow))
	defer observability.FinishSpan(span, &err)

	if err := s.checkSubject(subject); err != nil {
		return nil, err
	}

	excludeToday := func(ctx context.Context) (IDSet, error) {
		today, err := s.assignments.Get(ctx, s.day.Today(), subject)
		if err != nil {
			return nil, err
		}
		if today == nil {
			return nil, nil
		}
		return NewIDSet(today.QuestionIDs), nil
	}

	a, err := s.getOrCreateFor(ctx, tomorrow, subject, excludeToday)
	if err != nil {
		return nil, err
	}
	quiz, err := s.resolve(ctx, a)
	if err != nil {
		return nil, err
	}
	return &models.Preview{Date: a.Date, Subject: a.Subject, Questions: quiz.Questions}, nil
}

// forDisplay copies a and fills a missing GeneratedAt with now. The copy is never persisted.
func (s *DailyQuizService) forDisplay(a *models.DailyAssignment) *models.DailyAssignment {
	c := a.Clone()
	if c.GeneratedAt == nil || c.GeneratedAt.IsZero() {
		now := s.day.Now()
		c.GeneratedAt = &now
	}
	return c
}

func questionIDs(qs []*models.Question) []string {
	ids := make([]string, 0, len(qs))
	for _, q := range qs {
		ids = append(ids, q.ID)
	}
	return ids
}
