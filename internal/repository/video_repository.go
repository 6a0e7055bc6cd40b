package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"video-chat-go/internal/model"
)

// VideoRepository 定义了视频转写记录的数据操作接口。
// 所有查询都同时按 tenant_id 和 video id 过滤。
type VideoRepository interface {
	FindByTenantAndID(ctx context.Context, tenantID uint, videoID string) (*model.Video, error)
	// Upsert 按 (tenant_id, id) 查找视频，存在则更新标题、转写文本和元数据，否则创建。
	// created 为 true 表示本次调用新建了记录。
	Upsert(ctx context.Context, video *model.Video) (stored *model.Video, created bool, err error)
}

type videoRepository struct {
	db *gorm.DB
}

// NewVideoRepository 创建一个新的 VideoRepository 实例。
func NewVideoRepository(db *gorm.DB) VideoRepository {
	return &videoRepository{db: db}
}

// FindByTenantAndID 查找某个租户下的视频，不存在时返回 gorm.ErrRecordNotFound。
func (r *videoRepository) FindByTenantAndID(ctx context.Context, tenantID uint, videoID string) (*model.Video, error) {
	var video model.Video
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, videoID).
		First(&video).Error
	if err != nil {
		return nil, err
	}
	return &video, nil
}

// Upsert 在一个事务中完成查找与更新/创建。
func (r *videoRepository) Upsert(ctx context.Context, video *model.Video) (*model.Video, bool, error) {
	if video.TenantID == 0 || video.ID == "" {
		return nil, false, fmt.Errorf("video upsert requires tenant id and video id")
	}

	var stored model.Video
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("tenant_id = ? AND id = ?", video.TenantID, video.ID).First(&stored).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			stored = *video
			if err := tx.Create(&stored).Error; err != nil {
				return err
			}
			created = true
			return nil
		case err != nil:
			return err
		}

		// 更新已存在的视频
		err = tx.Model(&model.Video{}).
			Where("tenant_id = ? AND id = ?", video.TenantID, video.ID).
			Updates(map[string]interface{}{
				"title":           video.Title,
				"transcript_text": video.TranscriptText,
				"metadata":        video.Metadata,
			}).Error
		if err != nil {
			return err
		}
		return tx.Where("tenant_id = ? AND id = ?", video.TenantID, video.ID).First(&stored).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, false, fmt.Errorf("%w: video %q for tenant %d", ErrConflict, video.ID, video.TenantID)
		}
		return nil, false, fmt.Errorf("failed to upsert video: %w", err)
	}
	return &stored, created, nil
}
