// Package service 提供了搜索相关的业务逻辑。
package service

import (
	"context"
	"fmt"
	"strings"

	"video-chat-go/internal/model"
	"video-chat-go/pkg/es"
	"video-chat-go/pkg/log"
)

const (
	defaultSearchSize = 10
	maxSearchSize     = 50
)

// ChunkSearcher 在转写分块索引中检索，由 es.Client 实现。
type ChunkSearcher interface {
	Search(ctx context.Context, tenantID uint, query string, size int) ([]es.SearchHit, error)
}

// SearchService 接口定义了搜索操作。
type SearchService interface {
	Search(ctx context.Context, tenant *model.Tenant, query string, size int) ([]model.SearchResponseDTO, error)
}

type searchService struct {
	searcher ChunkSearcher
}

// NewSearchService 创建一个新的 SearchService 实例，searcher 为 nil 时搜索被禁用。
func NewSearchService(searcher ChunkSearcher) SearchService {
	return &searchService{searcher: searcher}
}

// Search 在租户自己的视频转写中做全文检索。
func (s *searchService) Search(ctx context.Context, tenant *model.Tenant, query string, size int) ([]model.SearchResponseDTO, error) {
	if tenant == nil {
		return nil, ErrUnauthorized
	}
	if s.searcher == nil {
		return nil, ErrSearchDisabled
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: q is required", ErrInvalidArgument)
	}
	if size <= 0 {
		size = defaultSearchSize
	}
	if size > maxSearchSize {
		size = maxSearchSize
	}

	log.Infof("[SearchService] 开始检索, tenant: %d, query: '%s', size: %d", tenant.ID, query, size)
	hits, err := s.searcher.Search(ctx, tenant.ID, query, size)
	if err != nil {
		return nil, fmt.Errorf("failed to search transcripts: %w", err)
	}

	results := make([]model.SearchResponseDTO, 0, len(hits))
	for _, h := range hits {
		// 索引查询已按租户过滤，这里再校验一次
		if h.Chunk.TenantID != tenant.ID {
			continue
		}
		results = append(results, model.SearchResponseDTO{
			VideoID:     h.Chunk.VideoID,
			Title:       h.Chunk.Title,
			ChunkID:     h.Chunk.ChunkID,
			TextContent: h.Chunk.TextContent,
			Score:       h.Score,
		})
	}
	return results, nil
}
