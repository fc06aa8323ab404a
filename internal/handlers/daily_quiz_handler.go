package handlers

import (
	"net/http"
	"strings"
	"time"

	"dailyquiz/internal/middleware"
	"dailyquiz/internal/models"
	"dailyquiz/internal/observability"
	"dailyquiz/internal/services"
	contextutils "dailyquiz/internal/utils"

	"github.com/gin-gonic/gin"
)

// DailyQuizHandler serves the quiz-taker routes
type DailyQuizHandler struct {
	quizService       services.DailyQuizServiceInterface
	submissionService services.SubmissionServiceInterface
	logger            *observability.Logger
}

// NewDailyQuizHandler creates a new DailyQuizHandler
func NewDailyQuizHandler(
	quizService services.DailyQuizServiceInterface,
	submissionService services.SubmissionServiceInterface,
	logger *observability.Logger,
) *DailyQuizHandler {
	return &DailyQuizHandler{
		quizService:       quizService,
		submissionService: submissionService,
		logger:            logger,
	}
}

// QuizResponse is today's quiz as shown to a quiz taker
type QuizResponse struct {
	Date        string                `json:"date"`
	Subject     string                `json:"subject"`
	QuizVersion int                   `json:"quiz_version"`
	GeneratedAt *time.Time            `json:"generated_at"`
	Questions   []models.QuizQuestion `json:"questions"`
	Message     string                `json:"message,omitempty"`
}

// SubmitAttemptRequest is the body of POST /v1/quiz/:subject/attempts
type SubmitAttemptRequest struct {
	Answers         []models.Answer `json:"answers"`
	DurationSeconds int             `json:"duration_seconds"`
}

// SubmitAttemptResponse carries the stored attempt and per-question feedback
type SubmitAttemptResponse struct {
	Attempt *models.Attempt       `json:"attempt"`
	Results []models.AnswerResult `json:"results"`
}

func newQuizResponse(q *models.DailyQuiz) QuizResponse {
	resp := QuizResponse{
		Date:        q.Assignment.Date,
		Subject:     q.Assignment.Subject,
		QuizVersion: q.Assignment.QuizVersion,
		GeneratedAt: q.Assignment.GeneratedAt,
		Questions:   models.QuizViews(q.Questions),
	}
	if len(resp.Questions) == 0 {
		resp.Message = services.NoQuizMessage
	}
	return resp
}

func subjectParam(c *gin.Context) string {
	return strings.ToLower(strings.TrimSpace(c.Param("subject")))
}

// GetToday handles GET /v1/quiz/:subject/today
func (h *DailyQuizHandler) GetToday(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_today_quiz")
	defer observability.FinishSpan(span, nil)

	subject := subjectParam(c)
	span.SetAttributes(observability.AttributeSubject(subject))

	quiz, err := h.quizService.GetTodayQuiz(ctx, subject)
	if err != nil {
		h.logger.Error(ctx, "Failed to load today's quiz", err, map[string]interface{}{"subject": subject})
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, newQuizResponse(quiz))
}

// Retry handles POST /v1/quiz/:subject/retry
func (h *DailyQuizHandler) Retry(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "retry_quiz")
	defer observability.FinishSpan(span, nil)

	subject := subjectParam(c)
	span.SetAttributes(observability.AttributeSubject(subject))

	assignment, err := h.quizService.Regenerate(ctx, subject)
	if err != nil {
		h.logger.Error(ctx, "Failed to regenerate quiz", err, map[string]interface{}{"subject": subject})
		HandleAppError(c, err)
		return
	}

	quiz, err := h.quizService.ResolveAssignment(ctx, assignment)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, newQuizResponse(quiz))
}

// SubmitAttempt handles POST /v1/quiz/:subject/attempts
func (h *DailyQuizHandler) SubmitAttempt(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "submit_attempt")
	defer observability.FinishSpan(span, nil)

	userLabel, ok := middleware.UserLabel(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	var body SubmitAttemptRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		HandleValidationError(c, "request body", "", err.Error())
		return
	}

	subject := subjectParam(c)
	span.SetAttributes(observability.AttributeSubject(subject), observability.AttributeUserLabel(userLabel))

	sub, err := h.submissionService.Submit(ctx, &services.SubmitRequest{
		UserLabel:       userLabel,
		Subject:         subject,
		Answers:         body.Answers,
		DurationSeconds: body.DurationSeconds,
		IP:              c.ClientIP(),
	})
	if err != nil {
		HandleSubmitError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SubmitAttemptResponse{Attempt: sub.Attempt, Results: sub.Results()})
}

// ListAttempts handles GET /v1/quiz/:subject/attempts
func (h *DailyQuizHandler) ListAttempts(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_attempts")
	defer observability.FinishSpan(span, nil)

	userLabel, ok := middleware.UserLabel(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	attempts, err := h.submissionService.ListAttempts(ctx, userLabel, subjectParam(c))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	if attempts == nil {
		attempts = []*models.Attempt{}
	}

	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}

// GetPreview handles GET /v1/admin/quiz/:subject/preview
func (h *DailyQuizHandler) GetPreview(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_tomorrow_preview")
	defer observability.FinishSpan(span, nil)

	preview, err := h.quizService.GenerateTomorrowPreview(ctx, subjectParam(c))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	if preview.Questions == nil {
		preview.Questions = []*models.Question{}
	}

	c.JSON(http.StatusOK, preview)
}
