package services

import (
	"context"

	"dailyquiz/internal/models"
	"dailyquiz/internal/observability"
	contextutils "dailyquiz/internal/utils"

	"github.com/google/uuid"
)

// QuestionServiceInterface is the admin surface over the question bank
type QuestionServiceInterface interface {
	CreateQuestion(ctx context.Context, in *models.QuestionInput) (*models.Question, error)
	UpdateQuestion(ctx context.Context, id string, in *models.QuestionInput) (*models.Question, error)
	DeactivateQuestion(ctx context.Context, id string) error
	GetQuestionByID(ctx context.Context, id string) (*models.Question, error)
	ListQuestions(ctx context.Context, subject string, includeInactive bool) ([]*models.Question, error)
}

// QuestionService validates admin input and delegates to the repository
type QuestionService struct {
	repo     QuestionRepository
	subjects []string
	clock    contextutils.Clock
	logger   *observability.Logger
}

// NewQuestionServiceWithLogger creates a new QuestionService
func NewQuestionServiceWithLogger(repo QuestionRepository, subjects []string, clock contextutils.Clock, logger *observability.Logger) *QuestionService {
	if clock == nil {
		clock = contextutils.SystemClock{}
	}
	return &QuestionService{repo: repo, subjects: subjects, clock: clock, logger: logger}
}

func (s *QuestionService) validateInput(in *models.QuestionInput) error {
	if err := contextutils.ValidateStruct(in); err != nil {
		return err
	}
	q := in.ToQuestion("", s.clock.Now())
	if !contains(s.subjects, q.Subject) {
		return contextutils.NewValidationError("unsupported subject %q", q.Subject)
	}
	if !q.HasValidShape() {
		return contextutils.NewValidationError("a question needs %d options and a correct_index inside them", models.OptionCount)
	}
	return nil
}

// CreateQuestion validates and stores a new question under a fresh uuid
func (s *QuestionService) CreateQuestion(ctx context.Context, in *models.QuestionInput) (result0 *models.Question, err error) {
	ctx, span := observability.TraceQuestionFunction(ctx, "CreateQuestion", observability.AttributeSubject(in.Subject))
	defer observability.FinishSpan(span, &err)

	if err := s.validateInput(in); err != nil {
		return nil, err
	}

	q := in.ToQuestion(uuid.NewString(), s.clock.Now().UTC())
	if err := s.repo.Add(ctx, q); err != nil {
		return nil, err
	}

	span.SetAttributes(observability.AttributeQuestionID(q.ID))
	s.logger.Info(ctx, "Question created", map[string]interface{}{
		"question_id": q.ID,
		"subject":     q.Subject,
		"topic":       q.Topic,
		"difficulty":  int(q.Difficulty),
	})
	return q, nil
}

// UpdateQuestion replaces the content of an existing question, keeping its id and creation time
func (s *QuestionService) UpdateQuestion(ctx context.Context, id string, in *models.QuestionInput) (result0 *models.Question, err error) {
	ctx, span := observability.TraceQuestionFunction(ctx, "UpdateQuestion", observability.AttributeQuestionID(id))
	defer observability.FinishSpan(span, &err)

	if err := s.validateInput(in); err != nil {
		return nil, err
	}

	existing, err := s.repo.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, questionNotFound(id)
	}

	q := in.ToQuestion(id, existing.CreatedAt)
	if in.Active == nil {
		q.Active = existing.Active
	}
	if err := s.repo.Update(ctx, q); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Question updated", map[string]interface{}{"question_id": id})
	return q, nil
}

// DeactivateQuestion soft-deletes a question
func (s *QuestionService) DeactivateQuestion(ctx context.Context, id string) (err error) {
	ctx, span := observability.TraceQuestionFunction(ctx, "DeactivateQuestion", observability.AttributeQuestionID(id))
	defer observability.FinishSpan(span, &err)

	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	s.logger.Info(ctx, "Question deactivated", map[string]interface{}{"question_id": id})
	return nil
}

// GetQuestionByID returns a question or a QUESTION_NOT_FOUND error
func (s *QuestionService) GetQuestionByID(ctx context.Context, id string) (result0 *models.Question, err error) {
	ctx, span := observability.TraceQuestionFunction(ctx, "GetQuestionByID", observability.AttributeQuestionID(id))
	defer observability.FinishSpan(span, &err)

	q, err := s.repo.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, questionNotFound(id)
	}
	return q, nil
}

// ListQuestions lists questions for one subject, or all when subject is empty
func (s *QuestionService) ListQuestions(ctx context.Context, subject string, includeInactive bool) (result0 []*models.Question, err error) {
	ctx, span := observability.TraceQuestionFunction(ctx, "ListQuestions", observability.AttributeSubject(subject))
	defer observability.FinishSpan(span, &err)

	if subject != "" && !contains(s.subjects, subject) {
		return nil, unsupportedSubject(subject)
	}
	return s.repo.List(ctx, subject, includeInactive)
}
