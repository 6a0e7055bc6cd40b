// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"video-chat-go/internal/model"
)

// ErrConflict 表示写入违反了唯一性等约束（例如重复的主键或 API Key）。
var ErrConflict = errors.New("record conflicts with an existing one")

// TenantRepository 接口定义了租户数据的持久化操作。
type TenantRepository interface {
	FindByAPIKey(ctx context.Context, apiKey string) (*model.Tenant, error)
	FindByID(ctx context.Context, tenantID uint) (*model.Tenant, error)
	Create(ctx context.Context, tenant *model.Tenant) error
	FindAll(ctx context.Context) ([]model.Tenant, error)
}

// tenantRepository 是 TenantRepository 接口的 GORM 实现。
type tenantRepository struct {
	db *gorm.DB
}

// NewTenantRepository 创建一个新的 TenantRepository 实例。
func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &tenantRepository{db: db}
}

// FindByAPIKey 根据 API Key 查找租户，不存在时返回 gorm.ErrRecordNotFound。
func (r *tenantRepository) FindByAPIKey(ctx context.Context, apiKey string) (*model.Tenant, error) {
	var tenant model.Tenant
	err := r.db.WithContext(ctx).Where("api_key = ?", apiKey).First(&tenant).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// FindByID 根据租户 ID 查找租户。
func (r *tenantRepository) FindByID(ctx context.Context, tenantID uint) (*model.Tenant, error) {
	var tenant model.Tenant
	err := r.db.WithContext(ctx).First(&tenant, tenantID).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// Create 在数据库中创建一个新的租户记录。
func (r *tenantRepository) Create(ctx context.Context, tenant *model.Tenant) error {
	err := r.db.WithContext(ctx).Create(tenant).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}
	return err
}

// FindAll 从数据库中检索所有租户记录。
func (r *tenantRepository) FindAll(ctx context.Context) ([]model.Tenant, error) {
	var tenants []model.Tenant
	err := r.db.WithContext(ctx).Order("id asc").Find(&tenants).Error
	return tenants, err
}
