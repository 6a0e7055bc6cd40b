package service

import (
	"context"
	"fmt"

	"video-chat-go/internal/model"
	"video-chat-go/internal/repository"
)

// ConversationHistory 是一个会话的历史消息与剩余存活时间。
type ConversationHistory struct {
	SessionID  string           `json:"sessionId"`
	Messages   []model.ChatTurn `json:"messages"`
	TTLSeconds int64            `json:"ttlSeconds"`
}

// ConversationService 定义了对话业务逻辑的接口。
type ConversationService interface {
	GetConversationHistory(ctx context.Context, tenant *model.Tenant, sessionID string) (*ConversationHistory, error)
	ListSessions(ctx context.Context, tenant *model.Tenant) ([]string, error)
}

type conversationService struct {
	repo repository.ConversationRepository
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(repo repository.ConversationRepository) ConversationService {
	return &conversationService{repo: repo}
}

// GetConversationHistory 获取租户下某个会话的完整消息历史，读取不会延长会话寿命。
func (s *conversationService) GetConversationHistory(ctx context.Context, tenant *model.Tenant, sessionID string) (*ConversationHistory, error) {
	if tenant == nil {
		return nil, ErrUnauthorized
	}
	key, err := model.NewSessionKey(tenant.ID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	history, err := s.repo.GetHistory(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMemoryUnavailable, err)
	}
	ttl, err := s.repo.TTL(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMemoryUnavailable, err)
	}
	if history == nil {
		history = []model.ChatTurn{}
	}
	return &ConversationHistory{
		SessionID:  key.SessionID(),
		Messages:   history,
		TTLSeconds: int64(ttl.Seconds()),
	}, nil
}

// ListSessions 返回租户下仍然存活的会话 ID。
func (s *conversationService) ListSessions(ctx context.Context, tenant *model.Tenant) ([]string, error) {
	if tenant == nil {
		return nil, ErrUnauthorized
	}
	sessions, err := s.repo.ListSessions(ctx, tenant.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMemoryUnavailable, err)
	}
	if sessions == nil {
		sessions = []string{}
	}
	return sessions, nil
}
