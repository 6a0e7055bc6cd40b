// Package pipeline 定义了转写文本索引的核心流程。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"video-chat-go/internal/model"
	"video-chat-go/internal/repository"
	"video-chat-go/pkg/log"
	"video-chat-go/pkg/tasks"
)

// DefaultChunkSize 是每个分块的最大字符（rune）数。
const DefaultChunkSize = 1000

// ChunkIndexer 是分块索引的存储端，由 es.Client 实现。
type ChunkIndexer interface {
	DeleteVideoChunks(ctx context.Context, tenantID uint, videoID string) error
	IndexChunks(ctx context.Context, chunks []model.TranscriptChunk) error
}

// Processor 封装了转写索引的所有依赖和逻辑。
type Processor struct {
	indexer   ChunkIndexer
	videoRepo repository.VideoRepository
	chunkSize int
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(indexer ChunkIndexer, videoRepo repository.VideoRepository, chunkSize int) *Processor {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Processor{
		indexer:   indexer,
		videoRepo: videoRepo,
		chunkSize: chunkSize,
	}
}

// PublishIndexTask 在没有消息队列时同步处理任务，使 Processor 可以直接充当任务发布者。
func (p *Processor) PublishIndexTask(ctx context.Context, task tasks.TranscriptIndexTask) error {
	return p.Process(ctx, task)
}

// Process 重新索引一个视频的转写文本：先删除旧分块，再写入新分块。
func (p *Processor) Process(ctx context.Context, task tasks.TranscriptIndexTask) error {
	if task.TenantID == 0 || task.VideoID == "" {
		return errors.New("索引任务缺少 tenant_id 或 video_id")
	}
	log.Infof("[Processor] 开始索引转写文本, TenantID: %d, VideoID: %s", task.TenantID, task.VideoID)

	// 1. 从目录中按租户加载视频
	video, err := p.videoRepo.FindByTenantAndID(ctx, task.TenantID, task.VideoID)
	if err != nil {
		return fmt.Errorf("加载视频失败: %w", err)
	}

	// 2. 清理旧分块，保证重复摄入时索引幂等
	if err := p.indexer.DeleteVideoChunks(ctx, task.TenantID, task.VideoID); err != nil {
		return fmt.Errorf("清理旧分块失败: %w", err)
	}

	// 3. 文本切块
	pieces := SplitText(video.TranscriptText, p.chunkSize)
	if len(pieces) == 0 {
		log.Warnf("[Processor] 转写文本为空, 跳过索引, TenantID: %d, VideoID: %s", task.TenantID, task.VideoID)
		return nil
	}

	chunks := make([]model.TranscriptChunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, model.TranscriptChunk{
			ChunkKey:    fmt.Sprintf("%d:%s:%d", task.TenantID, task.VideoID, i),
			TenantID:    task.TenantID,
			VideoID:     task.VideoID,
			ChunkID:     i,
			Title:       video.Title,
			TextContent: piece,
		})
	}

	// 4. 索引到 Elasticsearch
	if err := p.indexer.IndexChunks(ctx, chunks); err != nil {
		return fmt.Errorf("索引分块失败: %w", err)
	}
	log.Infof("[Processor] 索引完成, TenantID: %d, VideoID: %s, 字符数: %d, 分块数: %d",
		task.TenantID, task.VideoID, utf8.RuneCountInString(video.TranscriptText), len(chunks))
	return nil
}

// SplitText 将长文本按 rune 数切分，不会截断多字节字符。
func SplitText(text string, chunkSize int) []string {
	runes := []rune(text)
	if len(runes) == 0 || chunkSize <= 0 {
		return nil
	}
	chunks := make([]string, 0, (len(runes)+chunkSize-1)/chunkSize)
	for i := 0; i < len(runes); i += chunkSize {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
