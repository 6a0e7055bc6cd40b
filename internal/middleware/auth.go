// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"video-chat-go/internal/model"
	"video-chat-go/internal/service"
	"video-chat-go/pkg/log"
)

const (
	// APIKeyHeader 是携带租户 API Key 的请求头。
	APIKeyHeader = "X-API-Key"
	// APIKeyQuery 是 WebSocket 握手时携带 API Key 的查询参数（浏览器无法自定义握手请求头）。
	APIKeyQuery = "api_key"
	// TenantContextKey 是租户对象在 gin.Context 中的键。
	TenantContextKey = "tenant"
)

// TenantAuthMiddleware 通过 X-API-Key 请求头识别租户，并将 *model.Tenant 存入上下文。
// 识别失败时直接中止请求，后续的处理函数不会被调用。
func TenantAuthMiddleware(tenantService service.TenantService) gin.HandlerFunc {
	return tenantAuth(tenantService, false)
}

// WebsocketTenantAuthMiddleware 与 TenantAuthMiddleware 相同，但在请求头缺失时也接受 api_key 查询参数。
func WebsocketTenantAuthMiddleware(tenantService service.TenantService) gin.HandlerFunc {
	return tenantAuth(tenantService, true)
}

func tenantAuth(tenantService service.TenantService, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(APIKeyHeader)
		if apiKey == "" && allowQuery {
			apiKey = c.Query(APIKeyQuery)
		}

		tenant, err := tenantService.Authenticate(c.Request.Context(), apiKey)
		if err != nil {
			if errors.Is(err, service.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API Key."})
				return
			}
			log.Error("租户认证失败", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		c.Set(TenantContextKey, tenant)
		c.Next()
	}
}

// CurrentTenant 返回 TenantAuthMiddleware 存入上下文的租户，不存在时返回 nil。
func CurrentTenant(c *gin.Context) *model.Tenant {
	v, ok := c.Get(TenantContextKey)
	if !ok {
		return nil
	}
	tenant, _ := v.(*model.Tenant)
	return tenant
}
