package handlers

import (
	"net/http"
	"strings"

	"dailyquiz/internal/config"
	"dailyquiz/internal/observability"
	contextutils "dailyquiz/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// SessionHandler is the development sign-in. In production the identity comes from an upstream auth layer.
type SessionHandler struct {
	cfg    *config.Config
	logger *observability.Logger
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(cfg *config.Config, logger *observability.Logger) *SessionHandler {
	return &SessionHandler{cfg: cfg, logger: logger}
}

// SignInRequest is the body of POST /v1/session
type SignInRequest struct {
	UserLabel string `json:"user_label" binding:"required,max=128"`
}

// SignIn handles POST /v1/session
func (h *SessionHandler) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "user_label", req.UserLabel, err.Error())
		return
	}

	label := strings.TrimSpace(req.UserLabel)
	if label == "" {
		HandleValidationError(c, "user_label", req.UserLabel, "must not be blank")
		return
	}
	isAdmin := h.cfg.IsAdminLabel(label)

	session := sessions.Default(c)
	session.Set(contextutils.UserLabelKey, label)
	session.Set(contextutils.IsAdminKey, isAdmin)
	if err := session.Save(); err != nil {
		h.logger.Error(c.Request.Context(), "Failed to save session", err, map[string]interface{}{"user_label": label})
		StandardizeHTTPError(c, http.StatusInternalServerError, "Failed to save session", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_label": label, "is_admin": isAdmin})
}

// SignOut handles DELETE /v1/session
func (h *SessionHandler) SignOut(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		h.logger.Error(c.Request.Context(), "Failed to clear session", err)
		StandardizeHTTPError(c, http.StatusInternalServerError, "Failed to clear session", "")
		return
	}
	c.Status(http.StatusNoContent)
}
