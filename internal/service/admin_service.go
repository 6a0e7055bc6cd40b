package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"video-chat-go/internal/config"
	"video-chat-go/internal/model"
	"video-chat-go/internal/repository"
	"video-chat-go/pkg/hash"
	"video-chat-go/pkg/log"
	"video-chat-go/pkg/token"
)

// RoleAdmin 是管理员 token 中的角色。
const RoleAdmin = "ADMIN"

// createTenantAttempts 是 API Key 碰撞时重新生成的次数。
const createTenantAttempts = 3

// TenantDetail 定义了租户列表项。
type TenantDetail struct {
	TenantID  uint            `json:"tenantId"`
	Name      string          `json:"name"`
	CreatedAt model.LocalTime `json:"createdAt"`
}

// CreatedTenant 是新建租户的结果，API Key 只在此时返回一次。
type CreatedTenant struct {
	TenantDetail
	APIKey string `json:"apiKey"`
}

// AdminService 接口定义了所有管理员相关的业务操作。
type AdminService interface {
	Login(username, password string) (string, error)
	CreateTenant(ctx context.Context, name string) (*CreatedTenant, error)
	ListTenants(ctx context.Context) ([]TenantDetail, error)
}

// adminService 是 AdminService 接口的实现。
type adminService struct {
	tenantRepo repository.TenantRepository
	jwtManager *token.JWTManager
	adminCfg   config.AdminConfig
}

// NewAdminService 创建一个新的 AdminService 实例。
func NewAdminService(tenantRepo repository.TenantRepository, jwtManager *token.JWTManager, adminCfg config.AdminConfig) AdminService {
	return &adminService{
		tenantRepo: tenantRepo,
		jwtManager: jwtManager,
		adminCfg:   adminCfg,
	}
}

// Login 校验管理员账号并签发访问令牌。未配置密码哈希时拒绝所有登录。
func (s *adminService) Login(username, password string) (string, error) {
	if s.adminCfg.PasswordHash == "" || username != s.adminCfg.Username {
		return "", ErrInvalidCredentials
	}
	if !hash.CheckPasswordHash(password, s.adminCfg.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	accessToken, err := s.jwtManager.GenerateToken(username, RoleAdmin)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	log.Infof("管理员 %s 登录成功", username)
	return accessToken, nil
}

// CreateTenant 创建一个新租户并生成 API Key。
func (s *adminService) CreateTenant(ctx context.Context, name string) (*CreatedTenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}

	var err error
	for i := 0; i < createTenantAttempts; i++ {
		tenant := &model.Tenant{Name: name, APIKey: token.GenerateAPIKey()}
		err = s.tenantRepo.Create(ctx, tenant)
		if err == nil {
			log.Infow("tenant created", "tenant_id", tenant.ID, "name", tenant.Name)
			return &CreatedTenant{
				TenantDetail: toTenantDetail(*tenant),
				APIKey:       tenant.APIKey,
			}, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("failed to create tenant: %w", err)
		}
	}
	return nil, err
}

// ListTenants 返回所有租户，不包含 API Key。
func (s *adminService) ListTenants(ctx context.Context) ([]TenantDetail, error) {
	tenants, err := s.tenantRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TenantDetail, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, toTenantDetail(t))
	}
	return out, nil
}

func toTenantDetail(t model.Tenant) TenantDetail {
	return TenantDetail{
		TenantID:  t.ID,
		Name:      t.Name,
		CreatedAt: model.LocalTime(t.CreatedAt),
	}
}
