package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"video-chat-go/internal/middleware"
	"video-chat-go/internal/service"
	"video-chat-go/pkg/token"
)

const (
	serviceName    = "Video Chat LLM agent is running."
	serviceVersion = "1.0.0"
)

// RouterDeps 汇总了注册路由所需的服务。
type RouterDeps struct {
	TenantService       service.TenantService
	IngestService       service.IngestService
	ChatService         service.ChatService
	ConversationService service.ConversationService
	SearchService       service.SearchService
	AdminService        service.AdminService
	JWTManager          *token.JWTManager
}

// Health 返回服务健康状态。
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// NewRouter 创建路由引擎并注册所有路由。
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加请求 ID、自定义日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestID(), middleware.RequestLogger(), gin.Recovery())

	r.GET("/", Health)

	ingestHandler := NewIngestHandler(deps.IngestService)
	chatHandler := NewChatHandler(deps.ChatService)
	conversationHandler := NewConversationHandler(deps.ConversationService)
	searchHandler := NewSearchHandler(deps.SearchService)
	adminHandler := NewAdminHandler(deps.AdminService)

	apiV1 := r.Group("/api/v1")
	{
		// 租户路由，需要 X-API-Key
		tenantAuth := middleware.TenantAuthMiddleware(deps.TenantService)

		apiV1.POST("/ingest/video", tenantAuth, ingestHandler.IngestVideo)

		videos := apiV1.Group("/videos")
		videos.Use(tenantAuth)
		{
			videos.GET("/search", searchHandler.Search)
			videos.GET("/:videoId", ingestHandler.GetVideo)
		}

		chat := apiV1.Group("/chat")
		{
			chat.POST("/video", tenantAuth, chatHandler.ChatVideo)
			// WebSocket 握手时浏览器无法设置请求头，允许 api_key 查询参数
			chat.GET("/video/ws", middleware.WebsocketTenantAuthMiddleware(deps.TenantService), chatHandler.StreamChat)
			chat.GET("/sessions", tenantAuth, conversationHandler.ListSessions)
			chat.GET("/sessions/:sessionId/history", tenantAuth, conversationHandler.GetHistory)
		}

		admin := apiV1.Group("/admin")
		{
			admin.POST("/login", adminHandler.Login)

			tenants := admin.Group("/tenants")
			tenants.Use(middleware.AdminAuthMiddleware(deps.JWTManager))
			{
				tenants.POST("", adminHandler.CreateTenant)
				tenants.GET("", adminHandler.ListTenants)
			}
		}
	}
	return r
}
