package services

import (
	"context"
	"strings"

	"dailyquiz/internal/models"
	"dailyquiz/internal/observability"
	contextutils "dailyquiz/internal/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// SubmitRequest is one quiz submission
type SubmitRequest struct {
	UserLabel       string          `validate:"required,max=128"`
	Subject         string          `validate:"required"`
	Answers         []models.Answer `validate:"dive"`
	DurationSeconds int             `validate:"min=0"`
	// IP is hashed before it is stored; empty means not recorded
	IP string
}

// SubmissionServiceInterface defines attempt submission and history
type SubmissionServiceInterface interface {
	Submit(ctx context.Context, req *SubmitRequest) (*models.Submission, error)
	ListAttempts(ctx context.Context, userLabel, subject string) ([]*models.Attempt, error)
}

// SubmissionService validates, scores and records attempts
type SubmissionService struct {
	quiz      DailyQuizServiceInterface
	questions QuestionRepository
	attempts  AttemptRepository
	stats     StatsRecorder
	day       *contextutils.Day
	ipSalt    string
	logger    *observability.Logger
	metrics   *observability.QuizMetrics
}

// NewSubmissionService creates a new SubmissionService
func NewSubmissionService(
	quiz DailyQuizServiceInterface,
	questions QuestionRepository,
	attempts AttemptRepository,
	stats StatsRecorder,
	day *contextutils.Day,
	ipSalt string,
	logger *observability.Logger,
	metrics *observability.QuizMetrics,
) *SubmissionService {
	return &SubmissionService{
		quiz:      quiz,
		questions: questions,
		attempts:  attempts,
		stats:     stats,
		day:       day,
		ipSalt:    ipSalt,
		logger:    logger,
		metrics:   metrics,
	}
}

// Submit validates the answers against today's assignment, scores them, appends the attempt
// and records per-question stats. It must not be retried blindly: a timeout may hide a
// successful write.
func (s *SubmissionService) Submit(ctx context.Context, req *SubmitRequest) (result0 *models.Submission, err error) {
	ctx, span := observability.TraceSubmissionFunction(ctx, "Submit",
		observability.AttributeUserLabel(req.UserLabel),
		observability.AttributeSubject(req.Subject),
		observability.AttributeCount("answers", len(req.Answers)),
	)
	defer observability.FinishSpan(span, &err)
	defer func() {
		if err != nil {
			s.metrics.SubmissionRejected(ctx, req.Subject, contextutils.GetErrorCode(err))
		}
	}()

	if strings.TrimSpace(req.UserLabel) == "" {
		return nil, contextutils.NewAppError(contextutils.ErrorCodeUnauthorized, contextutils.SeverityWarn,
			"an identity is required to submit", "")
	}

	assignment, err := s.quiz.GetOrCreate(ctx, req.Subject)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(observability.AttributeQuizVersion(assignment.QuizVersion))

	if err := s.validate(ctx, assignment, req); err != nil {
		return nil, err
	}

	questions, err := s.questions.FetchByIDs(ctx, assignment.QuestionIDs)
	if err != nil {
		return nil, err
	}

	score, breakdown, updates := grade(questions, req.Answers, req.UserLabel)

	// read-then-write; two racing submissions may share a number
	prior, err := s.attempts.CountForUser(ctx, req.UserLabel, req.Subject, assignment.Date)
	if err != nil {
		return nil, err
	}

	attempt := &models.Attempt{
		ID:              uuid.NewString(),
		Date:            assignment.Date,
		Subject:         req.Subject,
		UserLabel:       req.UserLabel,
		AttemptNumber:   prior + 1,
		QuizVersion:     assignment.QuizVersion,
		QuestionIDs:     append([]string(nil), assignment.QuestionIDs...),
		Answers:         append(models.Answers(nil), req.Answers...),
		Score:           score,
		TopicBreakdown:  breakdown,
		SubmittedAt:     s.day.Now(),
		DurationSeconds: req.DurationSeconds,
		IPHash:          contextutils.HashIP(req.IP, s.ipSalt),
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, err
	}

	if err := s.stats.Record(ctx, updates); err != nil {
		s.logger.Error(ctx, "Attempt stored but question stats failed", err, map[string]interface{}{
			"attempt_id": attempt.ID,
			"updates":    len(updates),
		})
		return nil, err
	}

	span.SetAttributes(attribute.Int("attempt.score", score), attribute.Int("attempt.number", attempt.AttemptNumber))
	s.metrics.AttemptSubmitted(ctx, req.Subject, score)
	s.logger.Info(ctx, "Quiz attempt recorded", map[string]interface{}{
		"attempt_id":     attempt.ID,
		"user_label":     req.UserLabel,
		"subject":        req.Subject,
		"attempt_number": attempt.AttemptNumber,
		"quiz_version":   attempt.QuizVersion,
		"score":          score,
		"total":          len(assignment.QuestionIDs),
		"stats_batch":    len(updates),
	})

	return &models.Submission{Attempt: attempt, Questions: questions}, nil
}

// validate applies the checks in order; the first failure wins
func (s *SubmissionService) validate(ctx context.Context, a *models.DailyAssignment, req *SubmitRequest) error {
	if a.IsEmpty() {
		return &NoQuizAvailableError{Subject: a.Subject, Date: a.Date}
	}

	if len(req.Answers) != len(a.QuestionIDs) {
		s.logger.Warn(ctx, "Rejected submission with wrong answer count", map[string]interface{}{
			"expected": len(a.QuestionIDs),
			"got":      len(req.Answers),
		})
		return contextutils.NewValidationError("Must answer all %d questions", len(a.QuestionIDs))
	}

	for _, ans := range req.Answers {
		if !a.Contains(ans.QuestionID) {
			s.logger.Warn(ctx, "Rejected submission with foreign question", map[string]interface{}{
				"question_id": ans.QuestionID,
			})
			return contextutils.NewValidationError("Question %s is not part of today's quiz", ans.QuestionID)
		}
	}

	return contextutils.ValidateStruct(req)
}

// grade scores answers against questions in question order. A question with no matching
// answer counts as incorrect.
func grade(questions []*models.Question, answers []models.Answer, userLabel string) (int, models.TopicBreakdown, []models.StatUpdate) {
	selected := make(map[string]int, len(answers))
	for _, a := range answers {
		if _, dup := selected[a.QuestionID]; !dup {
			selected[a.QuestionID] = a.SelectedIndex
		}
	}

	score := 0
	breakdown := make(models.TopicBreakdown)
	updates := make([]models.StatUpdate, 0, len(questions))
	for _, q := range questions {
		sel, ok := selected[q.ID]
		correct := ok && sel == q.CorrectIndex

		ts := breakdown[q.Topic]
		ts.Total++
		if correct {
			ts.Correct++
			score++
		}
		breakdown[q.Topic] = ts

		updates = append(updates, models.StatUpdate{QuestionID: q.ID, UserLabel: userLabel, IsCorrect: correct})
	}
	return score, breakdown, updates
}

// ListAttempts returns the user's attempts for subject today
func (s *SubmissionService) ListAttempts(ctx context.Context, userLabel, subject string) (result0 []*models.Attempt, err error) {
	ctx, span := observability.TraceSubmissionFunction(ctx, "ListAttempts",
		observability.AttributeUserLabel(userLabel), observability.AttributeSubject(subject))
	defer observability.FinishSpan(span, &err)

	if !contains(s.quiz.Subjects(), subject) {
		return nil, unsupportedSubject(subject)
	}
	return s.attempts.ListForUser(ctx, userLabel, subject, s.day.Today())
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
