package middleware

import (
	"go-gin-trip-booking/internal/model"
	"go-gin-trip-booking/pkg/response"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const actorKey = "actor"

// TokenParser 解析 bearer token，回傳使用者 id 與角色
type TokenParser interface {
	Parse(raw string) (uuid.UUID, string, error)
}

// Auth 驗證 Bearer token，並把呼叫者以 model.Actor 放入 gin context
func Auth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			response.Unauthorized(c, "missing bearer token")
			return
		}

		userID, role, err := tokens.Parse(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}
		if !model.Role(role).IsValid() {
			response.Unauthorized(c, "invalid role claim")
			return
		}

		c.Set(actorKey, model.Actor{ID: userID, Role: model.Role(role)})
		c.Next()
	}
}

// ActorFrom 取出 Auth 放入的呼叫者
func ActorFrom(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	return actor, ok
}

// SetActor 供測試與已在別處驗證身分的呼叫端使用
func SetActor(c *gin.Context, actor model.Actor) {
	c.Set(actorKey, actor)
}
