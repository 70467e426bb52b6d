package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"z-novel-blueprint/pkg/logger"
)

const (
	// RequestIDHeader 请求 ID 头
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey gin.Context 中的请求 ID 键
	RequestIDKey = "request_id"
	// TraceIDKey gin.Context 中的 trace ID 键
	TraceIDKey = "trace_id"
)

// RequestID 透传或生成请求 ID，并写入日志上下文与响应头
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}

		c.Set(RequestIDKey, requestID)
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), logger.RequestIDKey, requestID))
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}
