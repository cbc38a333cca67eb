package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"licznik.app/server/internal/access"
)

const (
	// AccessCodeHeader is where clients normally present the shared code.
	AccessCodeHeader = "X-Access-Code"

	// RoleKey is the gin context key the gate stores the caller role
	// under.
	RoleKey = "role"
)

// presentedCode pulls the access code from the header, falling back to the
// accessCode form field for multipart submissions.
func presentedCode(c *gin.Context) string {
	if code := c.GetHeader(AccessCodeHeader); code != "" {
		return code
	}
	// Old clients sent the lowercase header name.
	if code := c.GetHeader("access-code"); code != "" {
		return code
	}
	return c.PostForm("accessCode")
}

// AccessGate classifies every request against the configured secrets and
// rejects unclassified callers before any other work happens.
func AccessGate(userCode, adminCode string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := access.Classify(presentedCode(c), userCode, adminCode)
		if !role.CanRead() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}
		c.Set(RoleKey, role)
		c.Next()
	}
}

// RequireAdmin guards the admin-only mutations behind the gate.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !RoleFrom(c).CanAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}
		c.Next()
	}
}

// RoleFrom reads the role the gate stored on the context.
func RoleFrom(c *gin.Context) access.Role {
	if v, ok := c.Get(RoleKey); ok {
		if role, ok := v.(access.Role); ok {
			return role
		}
	}
	return access.RoleNone
}
