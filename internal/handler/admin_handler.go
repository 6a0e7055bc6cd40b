package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"video-chat-go/internal/service"
	"video-chat-go/pkg/log"
	"video-chat-go/pkg/token"
)

// AdminHandler 负责处理所有与管理员相关的 API 请求。
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// LoginRequest 定义了管理员登录 API 的请求体结构。
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 处理管理员登录请求。
func (h *AdminHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Login: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载：用户名和密码不能为空"})
		return
	}

	accessToken, err := h.adminService.Login(req.Username, req.Password)
	if err != nil {
		log.Warnf("Login: Authentication failed for user '%s'", req.Username)
		writeServiceError(c, err)
		return
	}
	success(c, gin.H{"token": accessToken})
}

// CreateTenantRequest 定义了创建租户 API 的请求体结构。
type CreateTenantRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateTenant 创建一个租户，响应中包含只返回一次的 API Key。
func (h *AdminHandler) CreateTenant(c *gin.Context) {
	var req CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("CreateTenant: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载：name 不能为空"})
		return
	}

	tenant, err := h.adminService.CreateTenant(c.Request.Context(), req.Name)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if claims, ok := c.Get("claims"); ok {
		log.Infof("管理员 %s 创建了租户 %d", claims.(*token.CustomClaims).Username, tenant.TenantID)
	}
	success(c, tenant)
}

// ListTenants 返回所有租户。
func (h *AdminHandler) ListTenants(c *gin.Context) {
	tenants, err := h.adminService.ListTenants(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	success(c, tenants)
}
