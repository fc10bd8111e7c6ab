package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/learnhub/studyroom/internal/auth"
	"github.com/learnhub/studyroom/pkg/response"
)

// Role returns the authenticated role set by JWT, or "".
func Role(c *gin.Context) string {
	v, _ := c.Get(ContextUserRole)
	role, _ := v.(string)
	return role
}

// IsAdmin reports whether the caller has the admin role.
func IsAdmin(c *gin.Context) bool {
	return Role(c) == auth.RoleAdmin
}

// RequireRole returns a middleware that allows only the given roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	denied := "requires role " + strings.Join(roles, " or ")
	return func(c *gin.Context) {
		if _, ok := c.Get(ContextUserRole); !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if !allowed[Role(c)] {
			response.Forbidden(c, denied)
			c.Abort()
			return
		}
		c.Next()
	}
}
