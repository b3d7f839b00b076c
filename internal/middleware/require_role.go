package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/alptraumtech/lms/internal/models"
	"github.com/alptraumtech/lms/pkg/errors"
	"github.com/alptraumtech/lms/pkg/response"
)

// roleRank orders roles by privilege for minimum-role checks.
var roleRank = map[string]int{
	models.RoleEmployee:   1,
	models.RoleSupervisor: 2,
	models.RoleAdmin:      3,
}

// RequireRole rejects requests whose authenticated role ranks below minimum.
// Must run after Auth.
func RequireRole(minimum string) gin.HandlerFunc {
	required := roleRank[minimum]
	return func(c *gin.Context) {
		role, _ := c.Get(CtxRoleKey)
		roleStr, ok := role.(string)
		if !ok || roleRank[roleStr] < required {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
