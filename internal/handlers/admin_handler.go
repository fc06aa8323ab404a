package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"dailyquiz/internal/models"
	"dailyquiz/internal/observability"
	"dailyquiz/internal/services"
	contextutils "dailyquiz/internal/utils"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves question administration and per-user statistics
type AdminHandler struct {
	questionService services.QuestionServiceInterface
	stats           services.StatsRecorder
	logger          *observability.Logger
}

// NewAdminHandlerWithLogger creates a new AdminHandler
func NewAdminHandlerWithLogger(
	questionService services.QuestionServiceInterface,
	stats services.StatsRecorder,
	logger *observability.Logger,
) *AdminHandler {
	return &AdminHandler{
		questionService: questionService,
		stats:           stats,
		logger:          logger,
	}
}

// ListQuestions handles GET /v1/admin/questions
func (h *AdminHandler) ListQuestions(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "admin_list_questions")
	defer observability.FinishSpan(span, nil)

	includeInactive := false
	if raw := c.Query("include_inactive"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			HandleAppError(c, contextutils.WrapErrorf(contextutils.ErrInvalidFormat, "include_inactive must be a boolean, got %q", raw))
			return
		}
		includeInactive = v
	}

	subject := strings.ToLower(strings.TrimSpace(c.Query("subject")))
	questions, err := h.questionService.ListQuestions(ctx, subject, includeInactive)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	if questions == nil {
		questions = []*models.Question{}
	}

	c.JSON(http.StatusOK, gin.H{"questions": questions, "total": len(questions)})
}

// GetQuestion handles GET /v1/admin/questions/:id
func (h *AdminHandler) GetQuestion(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "admin_get_question")
	defer observability.FinishSpan(span, nil)

	q, err := h.questionService.GetQuestionByID(ctx, c.Param("id"))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// CreateQuestion handles POST /v1/admin/questions
func (h *AdminHandler) CreateQuestion(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "admin_create_question")
	defer observability.FinishSpan(span, nil)

	var in models.QuestionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		HandleValidationError(c, "request body", "", err.Error())
		return
	}

	q, err := h.questionService.CreateQuestion(ctx, &in)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

// UpdateQuestion handles PUT /v1/admin/questions/:id
func (h *AdminHandler) UpdateQuestion(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "admin_update_question")
	defer observability.FinishSpan(span, nil)

	var in models.QuestionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		HandleValidationError(c, "request body", "", err.Error())
		return
	}

	q, err := h.questionService.UpdateQuestion(ctx, c.Param("id"), &in)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// DeactivateQuestion handles DELETE /v1/admin/questions/:id. The row is kept so past assignments still resolve.
func (h *AdminHandler) DeactivateQuestion(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "admin_deactivate_question")
	defer observability.FinishSpan(span, nil)

	id := c.Param("id")
	if err := h.questionService.DeactivateQuestion(ctx, id); err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "active": false})
}

// GetUserStats handles GET /v1/admin/stats/:userLabel
func (h *AdminHandler) GetUserStats(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "admin_get_user_stats")
	defer observability.FinishSpan(span, nil)

	userLabel := strings.TrimSpace(c.Param("userLabel"))
	if userLabel == "" {
		HandleAppError(c, contextutils.ErrMissingRequired)
		return
	}

	stats, err := h.stats.ListForUser(ctx, userLabel)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	if stats == nil {
		stats = []*models.QuestionStat{}
	}
	c.JSON(http.StatusOK, gin.H{"user_label": userLabel, "stats": stats})
}

// DeleteUserStats handles DELETE /v1/admin/stats/:userLabel
func (h *AdminHandler) DeleteUserStats(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "admin_delete_user_stats")
	defer observability.FinishSpan(span, nil)

	userLabel := strings.TrimSpace(c.Param("userLabel"))
	if userLabel == "" {
		HandleAppError(c, contextutils.ErrMissingRequired)
		return
	}

	deleted, err := h.stats.DeleteForUser(ctx, userLabel)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	h.logger.Info(ctx, "Deleted question stats for user", map[string]interface{}{
		"user_label": userLabel,
		"deleted":    deleted,
	})
	c.JSON(http.StatusOK, gin.H{"user_label": userLabel, "deleted": deleted})
}
