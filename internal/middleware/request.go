package middleware

import (
	"go-gin-trip-booking/pkg/logger"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestID 沿用上游的 X-Request-ID，沒有則產生新的
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// RequestLogger 每個請求記錄一行；5xx 用 Error，4xx 用 Warn
func RequestLogger() gin.HandlerFunc {
	log := logger.WithComponent("http")

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", GetRequestID(c)),
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			log.Error("Server error", fields...)
		case status >= 400:
			log.Warn("Client error", fields...)
		default:
			log.Info("Request completed", fields...)
		}
	}
}
