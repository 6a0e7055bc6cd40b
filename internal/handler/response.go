// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"video-chat-go/internal/service"
	"video-chat-go/pkg/log"
)

const (
	// retryAfterSeconds 是模型服务限流时建议客户端等待的秒数。
	retryAfterSeconds = "30"
	// MemoryDegradedHeader 在对话历史未能写入时置为 "true"。
	MemoryDegradedHeader = "X-Memory-Degraded"
)

// success 以 {code, message, data} 信封返回成功结果。
func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": data})
}

// errorStatus 把业务错误映射为 HTTP 状态码和对外的错误信息。
// 未识别的错误一律返回 500，内部细节不会出现在响应中。
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, "Invalid API Key."
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrVideoNotFound):
		return http.StatusNotFound, "Video not found"
	case errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests, "The AI model is rate limited. Please retry later."
	case errors.Is(err, service.ErrGateway):
		return http.StatusInternalServerError, "Error during the request with the ai model."
	case errors.Is(err, service.ErrMemoryUnavailable):
		return http.StatusServiceUnavailable, "Conversation memory is temporarily unavailable."
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, "Database integrity error: the record conflicts with an existing one."
	case errors.Is(err, service.ErrSearchDisabled):
		return http.StatusNotImplemented, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// writeServiceError 写出 {"error": "..."} 响应。
func writeServiceError(c *gin.Context, err error) {
	status, msg := errorStatus(err)
	if status == http.StatusTooManyRequests {
		c.Header("Retry-After", retryAfterSeconds)
	}
	if status >= http.StatusInternalServerError {
		log.Errorw("request failed", "path", c.FullPath(), "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
