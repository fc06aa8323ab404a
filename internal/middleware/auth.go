// Package middleware provides identity and authorization middleware for the Gin web framework.
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	contextutils "dailyquiz/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Headers set by a trusted upstream proxy
const (
	HeaderUserLabel = "X-User-Label"
	HeaderUserAdmin = "X-User-Admin"
)

// IdentityOptions controls where identity is read from
type IdentityOptions struct {
	// TrustHeaders accepts HeaderUserLabel and HeaderUserAdmin. Only enable behind a proxy that strips them from clients.
	TrustHeaders bool
}

// ResolveIdentity reads the caller's label and admin flag, preferring trusted headers when enabled.
// ok is false when no identity is present.
func ResolveIdentity(c *gin.Context, opts IdentityOptions) (label string, isAdmin bool, ok bool) {
	if opts.TrustHeaders {
		if label = strings.TrimSpace(c.GetHeader(HeaderUserLabel)); label != "" {
			admin, _ := strconv.ParseBool(c.GetHeader(HeaderUserAdmin))
			return label, admin, true
		}
	}

	session := sessions.Default(c)
	raw, isString := session.Get(contextutils.UserLabelKey).(string)
	if !isString || strings.TrimSpace(raw) == "" {
		return "", false, false
	}
	admin, _ := session.Get(contextutils.IsAdminKey).(bool)
	return raw, admin, true
}

// RequireAuth rejects requests without an identity and stores it on the gin context
func RequireAuth(opts IdentityOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		label, isAdmin, ok := ResolveIdentity(c, opts)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
				"code":  string(contextutils.ErrorCodeUnauthorized),
			})
			c.Abort()
			return
		}

		c.Set(contextutils.UserLabelKey, label)
		c.Set(contextutils.IsAdminKey, isAdmin)
		c.Next()
	}
}

// RequireAdmin requires an identity carrying the admin flag
func RequireAdmin(opts IdentityOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		label, isAdmin, ok := ResolveIdentity(c, opts)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
				"code":  string(contextutils.ErrorCodeUnauthorized),
			})
			c.Abort()
			return
		}

		if !isAdmin {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Admin access required",
				"code":  string(contextutils.ErrorCodeForbidden),
			})
			c.Abort()
			return
		}

		c.Set(contextutils.UserLabelKey, label)
		c.Set(contextutils.IsAdminKey, true)
		c.Next()
	}
}

// UserLabel returns the label stored by RequireAuth or RequireAdmin
func UserLabel(c *gin.Context) (string, bool) {
	label := c.GetString(contextutils.UserLabelKey)
	return label, label != ""
}
