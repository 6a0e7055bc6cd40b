package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"video-chat-go/internal/middleware"
	"video-chat-go/internal/service"
	"video-chat-go/pkg/log"
)

// degradedWarning 是对话历史未能保存时附带的提示。
const degradedWarning = "The answer was generated but this turn could not be saved to the conversation history."

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源
		},
	}
)

// ChatHandler 负责处理与视频对话的请求。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// ChatVideoRequest 定义了对话接口的请求体。
type ChatVideoRequest struct {
	VideoID   string `json:"video_id" binding:"required"`
	SessionID string `json:"session_id" binding:"required"`
	UserQuery string `json:"user_query" binding:"required"`
	Model     string `json:"model"`
}

func (r ChatVideoRequest) toService() service.ChatRequest {
	return service.ChatRequest{
		VideoID:   r.VideoID,
		SessionID: r.SessionID,
		UserQuery: r.UserQuery,
		Model:     r.Model,
	}
}

// ChatVideo 针对视频提问并返回完整答案。
func (h *ChatHandler) ChatVideo(c *gin.Context) {
	var req ChatVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("ChatVideo: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载：video_id、session_id 和 user_query 不能为空"})
		return
	}

	result, err := h.chatService.Chat(c.Request.Context(), middleware.CurrentTenant(c), req.toService())
	if err != nil {
		writeServiceError(c, err)
		return
	}

	resp := gin.H{"answer": result.Answer}
	if result.Degraded {
		c.Header(MemoryDegradedHeader, "true")
		resp["warning"] = degradedWarning
	}
	c.JSON(http.StatusOK, resp)
}

// chunkWriter 把模型输出的原始分块包装成 {"chunk":"..."} 后写入 WebSocket。
type chunkWriter struct {
	conn *websocket.Conn
}

// WriteMessage 满足 llm.MessageWriter 接口。
func (w *chunkWriter) WriteMessage(messageType int, data []byte) error {
	b, _ := json.Marshal(map[string]string{"chunk": string(data)})
	return w.conn.WriteMessage(messageType, b)
}

// StreamChat 处理一个 WebSocket 连接：每收到一条 JSON 提问，就流式返回答案分块，最后发送完成通知。
func (h *ChatHandler) StreamChat(c *gin.Context) {
	tenant := middleware.CurrentTenant(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	log.Infow("WebSocket 连接已建立", "conn_id", connID, "tenant_id", tenant.ID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			break
		}

		var req ChatVideoRequest
		if err := json.Unmarshal(message, &req); err != nil {
			writeJSON(conn, gin.H{"error": "无效的消息格式，需要 JSON: {video_id, session_id, user_query}"})
			continue
		}

		result, err := h.chatService.StreamChat(c.Request.Context(), tenant, req.toService(), &chunkWriter{conn: conn})
		if err != nil {
			status, msg := errorStatus(err)
			if status >= http.StatusInternalServerError {
				log.Errorw("处理流式响应失败", "conn_id", connID, "error", err)
			}
			writeJSON(conn, gin.H{"error": msg, "status": status})
			sendCompletion(conn, "error", false)
			continue
		}
		sendCompletion(conn, "finished", result.Degraded)
	}
	log.Infow("WebSocket 连接已关闭", "conn_id", connID)
}

func writeJSON(conn *websocket.Conn, v interface{}) {
	b, _ := json.Marshal(v)
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

// sendCompletion 发送完成通知 JSON
func sendCompletion(conn *websocket.Conn, status string, degraded bool) {
	notif := gin.H{
		"type":      "completion",
		"status":    status,
		"timestamp": time.Now().UnixMilli(),
	}
	if degraded {
		notif["warning"] = degradedWarning
	}
	writeJSON(conn, notif)
}
