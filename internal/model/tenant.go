// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// Tenant 对应 tenants 表，代表一个通过 API Key 接入的客户组织。
type Tenant struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	APIKey    string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Tenant) TableName() string {
	return "tenants"
}
