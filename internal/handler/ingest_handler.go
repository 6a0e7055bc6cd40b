package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"video-chat-go/internal/middleware"
	"video-chat-go/internal/service"
	"video-chat-go/pkg/log"
)

// IngestHandler 负责视频转写的摄入与查询。
type IngestHandler struct {
	ingestService service.IngestService
}

// NewIngestHandler 创建一个新的 IngestHandler。
func NewIngestHandler(ingestService service.IngestService) *IngestHandler {
	return &IngestHandler{ingestService: ingestService}
}

// IngestVideoRequest 定义了摄入接口的请求体，metadata 也接受 meta_data 写法。
type IngestVideoRequest struct {
	VideoID    string          `json:"video_id" binding:"required"`
	Title      string          `json:"title" binding:"required"`
	Transcript string          `json:"transcript" binding:"required"`
	Metadata   json.RawMessage `json:"metadata"`
	MetaData   json.RawMessage `json:"meta_data"`
}

// IngestVideo 创建或更新一个视频的转写文本。
func (h *IngestHandler) IngestVideo(c *gin.Context) {
	var req IngestVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("IngestVideo: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载：video_id、title 和 transcript 不能为空"})
		return
	}
	metadata := req.Metadata
	if len(metadata) == 0 {
		metadata = req.MetaData
	}

	result, err := h.ingestService.IngestVideo(c.Request.Context(), middleware.CurrentTenant(c), service.IngestRequest{
		VideoID:    req.VideoID,
		Title:      req.Title,
		Transcript: req.Transcript,
		Metadata:   metadata,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetVideo 返回当前租户下某个视频的详情。
func (h *IngestHandler) GetVideo(c *gin.Context) {
	video, err := h.ingestService.GetVideo(c.Request.Context(), middleware.CurrentTenant(c), c.Param("videoId"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	success(c, video)
}
