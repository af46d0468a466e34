package middleware

import (
	"go-gin-trip-booking/internal/model"
	"go-gin-trip-booking/pkg/response"

	"github.com/gin-gonic/gin"
)

// RequireRole 需在 Auth 之後使用
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			response.Unauthorized(c, "authentication required")
			return
		}
		if !allowed[actor.Role] {
			response.Forbidden(c, "insufficient role")
			return
		}
		c.Next()
	}
}
