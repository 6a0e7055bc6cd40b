package model

import (
	"time"

	"gorm.io/datatypes"
)

// Video 对应 videos 表。主键是 (tenant_id, id) 的复合主键，
// 不同租户可以使用相同的视频 ID 而互不影响。
type Video struct {
	TenantID       uint           `gorm:"primaryKey;autoIncrement:false" json:"tenantId"`
	ID             string         `gorm:"primaryKey;type:varchar(191)" json:"videoId"`
	Title          string         `gorm:"type:varchar(255);not null" json:"title"`
	TranscriptText string         `gorm:"type:longtext;not null" json:"transcript"`
	Metadata       datatypes.JSON `gorm:"not null" json:"metadata"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Video) TableName() string {
	return "videos"
}

// VideoDetailDTO 是返回给客户端的视频详情。
type VideoDetailDTO struct {
	VideoID          string         `json:"videoId"`
	Title            string         `json:"title"`
	Transcript       string         `json:"transcript"`
	Metadata         datatypes.JSON `json:"metadata"`
	TranscriptURL    string         `json:"transcriptUrl,omitempty"`
	TranscriptLength int            `json:"transcriptLength"`
	CreatedAt        LocalTime      `json:"createdAt"`
	UpdatedAt        LocalTime      `json:"updatedAt"`
}
