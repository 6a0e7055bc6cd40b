package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"video-chat-go/internal/middleware"
	"video-chat-go/internal/service"
	"video-chat-go/pkg/log"
)

// SearchHandler 结构体定义了搜索相关的处理器。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
	}
}

// Search 在当前租户的视频转写中检索。
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("q")
	size, err := strconv.Atoi(c.DefaultQuery("size", "10"))
	if err != nil {
		size = 0
	}

	results, err := h.searchService.Search(c.Request.Context(), middleware.CurrentTenant(c), query, size)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	log.Infof("[SearchHandler] 检索成功, query: '%s', 返回 %d 条结果", query, len(results))
	success(c, results)
}
