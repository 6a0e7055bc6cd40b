package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"video-chat-go/internal/model"
	"video-chat-go/internal/repository"
)

// TenantService 负责通过 API Key 识别租户。
type TenantService interface {
	Authenticate(ctx context.Context, apiKey string) (*model.Tenant, error)
}

type tenantService struct {
	tenantRepo repository.TenantRepository
}

// NewTenantService 创建一个新的 TenantService 实例。
func NewTenantService(tenantRepo repository.TenantRepository) TenantService {
	return &tenantService{tenantRepo: tenantRepo}
}

// Authenticate 根据 API Key 查找租户，Key 为空或不存在时返回 ErrUnauthorized。
func (s *tenantService) Authenticate(ctx context.Context, apiKey string) (*model.Tenant, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrUnauthorized
	}
	tenant, err := s.tenantRepo.FindByAPIKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to look up tenant: %w", err)
	}
	return tenant, nil
}
