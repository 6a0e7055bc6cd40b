package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"video-chat-go/internal/model"
	"video-chat-go/internal/repository"
	"video-chat-go/pkg/log"
	"video-chat-go/pkg/tasks"
)

const (
	StatusCreated = "created"
	StatusUpdated = "updated"
)

// sideEffectTimeout 是摄入成功后归档与发布索引任务的超时时间。
const sideEffectTimeout = 30 * time.Second

// IngestRequest 是一次视频转写摄入请求。
type IngestRequest struct {
	VideoID    string
	Title      string
	Transcript string
	Metadata   json.RawMessage
}

// IngestResult 是摄入接口的返回内容。
type IngestResult struct {
	VideoID string `json:"video_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// TaskPublisher 发布转写索引任务，由 kafka.Producer 或 pipeline.Processor（同步处理）实现。
type TaskPublisher interface {
	PublishIndexTask(ctx context.Context, task tasks.TranscriptIndexTask) error
}

// TranscriptArchive 归档转写文本，由 storage.TranscriptArchive 实现。
type TranscriptArchive interface {
	Put(ctx context.Context, tenantID uint, videoID, text string) error
	PresignedURL(ctx context.Context, tenantID uint, videoID string) (string, error)
}

// IngestService 定义了视频摄入与查询的业务逻辑。
type IngestService interface {
	IngestVideo(ctx context.Context, tenant *model.Tenant, req IngestRequest) (*IngestResult, error)
	GetVideo(ctx context.Context, tenant *model.Tenant, videoID string) (*model.VideoDetailDTO, error)
}

type ingestService struct {
	videoRepo repository.VideoRepository
	publisher TaskPublisher
	archive   TranscriptArchive
}

// NewIngestService 创建一个新的 IngestService 实例，publisher 与 archive 可以为 nil。
func NewIngestService(videoRepo repository.VideoRepository, publisher TaskPublisher, archive TranscriptArchive) IngestService {
	return &ingestService{
		videoRepo: videoRepo,
		publisher: publisher,
		archive:   archive,
	}
}

// IngestVideo 创建或更新租户下的视频转写。
func (s *ingestService) IngestVideo(ctx context.Context, tenant *model.Tenant, req IngestRequest) (*IngestResult, error) {
	if tenant == nil {
		return nil, ErrUnauthorized
	}
	videoID := strings.TrimSpace(req.VideoID)
	if videoID == "" {
		return nil, fmt.Errorf("%w: video_id is required", ErrInvalidArgument)
	}
	metadata, err := normalizeMetadata(req.Metadata)
	if err != nil {
		return nil, err
	}

	stored, created, err := s.videoRepo.Upsert(ctx, &model.Video{
		TenantID:       tenant.ID,
		ID:             videoID,
		Title:          req.Title,
		TranscriptText: req.Transcript,
		Metadata:       metadata,
	})
	if err != nil {
		return nil, err
	}

	result := &IngestResult{VideoID: stored.ID}
	if created {
		result.Status = StatusCreated
		result.Message = fmt.Sprintf("Video '%s' ingested successfully.", stored.Title)
	} else {
		result.Status = StatusUpdated
		result.Message = fmt.Sprintf("Video '%s' updated successfully.", stored.Title)
	}
	log.Infow("video ingested", "tenant_id", tenant.ID, "video_id", stored.ID, "status", result.Status,
		"transcript_runes", utf8.RuneCountInString(stored.TranscriptText))

	s.afterIngest(ctx, stored, result.Status)
	return result, nil
}

// afterIngest 归档转写并发布索引任务；失败只记录日志，不影响摄入结果。
func (s *ingestService) afterIngest(ctx context.Context, video *model.Video, status string) {
	if s.archive == nil && s.publisher == nil {
		return
	}
	bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if s.archive != nil {
		if err := s.archive.Put(bgCtx, video.TenantID, video.ID, video.TranscriptText); err != nil {
			log.Warnw("failed to archive transcript", "tenant_id", video.TenantID, "video_id", video.ID, "error", err)
		}
	}
	if s.publisher != nil {
		task := tasks.TranscriptIndexTask{
			TenantID: video.TenantID,
			VideoID:  video.ID,
			Title:    video.Title,
			Status:   status,
		}
		if err := s.publisher.PublishIndexTask(bgCtx, task); err != nil {
			log.Warnw("failed to publish transcript index task", "tenant_id", video.TenantID, "video_id", video.ID, "error", err)
		}
	}
}

// GetVideo 返回租户下的视频详情，启用归档时附带临时下载链接。
func (s *ingestService) GetVideo(ctx context.Context, tenant *model.Tenant, videoID string) (*model.VideoDetailDTO, error) {
	if tenant == nil {
		return nil, ErrUnauthorized
	}
	video, err := s.videoRepo.FindByTenantAndID(ctx, tenant.ID, videoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVideoNotFound
		}
		return nil, fmt.Errorf("failed to load video: %w", err)
	}

	dto := &model.VideoDetailDTO{
		VideoID:          video.ID,
		Title:            video.Title,
		Transcript:       video.TranscriptText,
		Metadata:         video.Metadata,
		TranscriptLength: utf8.RuneCountInString(video.TranscriptText),
		CreatedAt:        model.LocalTime(video.CreatedAt),
		UpdatedAt:        model.LocalTime(video.UpdatedAt),
	}
	if s.archive != nil {
		url, err := s.archive.PresignedURL(ctx, tenant.ID, video.ID)
		if err != nil {
			log.Warnw("failed to presign transcript url", "tenant_id", tenant.ID, "video_id", video.ID, "error", err)
		} else {
			dto.TranscriptURL = url
		}
	}
	return dto, nil
}

// normalizeMetadata 要求元数据是 JSON 对象，缺省时为 {}。
func normalizeMetadata(raw json.RawMessage) (datatypes.JSON, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return datatypes.JSON("{}"), nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, fmt.Errorf("%w: metadata must be a JSON object", ErrInvalidArgument)
	}
	return datatypes.JSON(trimmed), nil
}
