package handlers

import (
	"context"

	"dailyquiz/internal/models"
	"dailyquiz/internal/services"

	"github.com/stretchr/testify/mock"
)

type mockDailyQuizService struct {
	mock.Mock
}

func (m *mockDailyQuizService) GetOrCreate(ctx context.Context, subject string) (*models.DailyAssignment, error) {
	args := m.Called(ctx, subject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DailyAssignment), args.Error(1)
}

func (m *mockDailyQuizService) Regenerate(ctx context.Context, subject string) (*models.DailyAssignment, error) {
	args := m.Called(ctx, subject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DailyAssignment), args.Error(1)
}

func (m *mockDailyQuizService) GetTodayQuiz(ctx context.Context, subject string) (*models.DailyQuiz, error) {
	args := m.Called(ctx, subject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DailyQuiz), args.Error(1)
}

func (m *mockDailyQuizService) ResolveAssignment(ctx context.Context, a *models.DailyAssignment) (*models.DailyQuiz, error) {
	args := m.Called(ctx, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DailyQuiz), args.Error(1)
}

func (m *mockDailyQuizService) GenerateTomorrowPreview(ctx context.Context, subject string) (*models.Preview, error) {
	args := m.Called(ctx, subject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Preview), args.Error(1)
}

func (m *mockDailyQuizService) Subjects() []string {
	return m.Called().Get(0).([]string)
}

type mockSubmissionService struct {
	mock.Mock
}

func (m *mockSubmissionService) Submit(ctx context.Context, req *services.SubmitRequest) (*models.Submission, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Submission), args.Error(1)
}

func (m *mockSubmissionService) ListAttempts(ctx context.Context, userLabel, subject string) ([]*models.Attempt, error) {
	args := m.Called(ctx, userLabel, subject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Attempt), args.Error(1)
}

type mockQuestionService struct {
	mock.Mock
}

func (m *mockQuestionService) CreateQuestion(ctx context.Context, in *models.QuestionInput) (*models.Question, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Question), args.Error(1)
}

func (m *mockQuestionService) UpdateQuestion(ctx context.Context, id string, in *models.QuestionInput) (*models.Question, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Question), args.Error(1)
}

func (m *mockQuestionService) DeactivateQuestion(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockQuestionService) GetQuestionByID(ctx context.Context, id string) (*models.Question, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Question), args.Error(1)
}

func (m *mockQuestionService) ListQuestions(ctx context.Context, subject string, includeInactive bool) ([]*models.Question, error) {
	args := m.Called(ctx, subject, includeInactive)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Question), args.Error(1)
}

type mockStatsRecorder struct {
	mock.Mock
}

func (m *mockStatsRecorder) Record(ctx context.Context, updates []models.StatUpdate) error {
	return m.Called(ctx, updates).Error(0)
}

func (m *mockStatsRecorder) ListForUser(ctx context.Context, userLabel string) ([]*models.QuestionStat, error) {
	args := m.Called(ctx, userLabel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.QuestionStat), args.Error(1)
}

func (m *mockStatsRecorder) DeleteForUser(ctx context.Context, userLabel string) (int64, error) {
	args := m.Called(ctx, userLabel)
	return args.Get(0).(int64), args.Error(1)
}
