package handler

import (
	"github.com/gin-gonic/gin"
	"video-chat-go/internal/middleware"
	"video-chat-go/internal/service"
)

// ConversationHandler 处理与对话历史相关的 API 请求。
type ConversationHandler struct {
	service service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// ListSessions 返回当前租户下仍然存活的会话。
func (h *ConversationHandler) ListSessions(c *gin.Context) {
	sessions, err := h.service.ListSessions(c.Request.Context(), middleware.CurrentTenant(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	success(c, sessions)
}

// GetHistory 返回某个会话的历史消息与剩余存活时间。
func (h *ConversationHandler) GetHistory(c *gin.Context) {
	history, err := h.service.GetConversationHistory(c.Request.Context(), middleware.CurrentTenant(c), c.Param("sessionId"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	success(c, history)
}
