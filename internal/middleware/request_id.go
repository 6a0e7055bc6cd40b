package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader 是请求 ID 的请求头/响应头。
	RequestIDHeader = "X-Request-ID"
	// RequestIDContextKey 是请求 ID 在 gin.Context 中的键。
	RequestIDContextKey = "request_id"
)

// RequestID 沿用客户端传入的 X-Request-ID，没有时生成一个新的 UUID，并回写到响应头。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(RequestIDContextKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
