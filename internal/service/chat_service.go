// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"
	"video-chat-go/internal/config"
	"video-chat-go/internal/model"
	"video-chat-go/internal/repository"
	"video-chat-go/pkg/llm"
	"video-chat-go/pkg/log"
)

// defaultMemoryWriteTimeout 是回写对话历史的默认超时时间。
const defaultMemoryWriteTimeout = 5 * time.Second

// ChatRequest 是一次针对视频的提问。
type ChatRequest struct {
	VideoID   string
	SessionID string
	UserQuery string
	Model     string
}

// ChatResult 是提问的结果。Degraded 为 true 表示答案已生成，但本轮对话未能完整写入历史。
type ChatResult struct {
	Answer   string
	Degraded bool
}

// ChatOptions 控制 prompt 构建与模型选择。
type ChatOptions struct {
	SystemTemplate string
	DefaultModel   string
	AllowedModels  []string
	// HistoryWindow 是回放的历史消息条数，0 表示全部回放。
	HistoryWindow int
	WriteTimeout  time.Duration
	Generation    *llm.GenerationParams
}

// ChatOptionsFromConfig 从配置构建 ChatOptions。
func ChatOptionsFromConfig(cfg config.Config) ChatOptions {
	return ChatOptions{
		SystemTemplate: cfg.LLM.Prompt.SystemTemplate,
		DefaultModel:   cfg.LLM.Model,
		AllowedModels:  cfg.LLM.AllowedModels,
		HistoryWindow:  cfg.Memory.HistoryWindow,
		WriteTimeout:   cfg.Memory.WriteTimeout(),
		Generation:     llm.GenerationFromConfig(cfg.LLM.Generation),
	}
}

// ChatService 定义了聊天操作的接口。
type ChatService interface {
	// Chat 回答一次提问并把问答写入会话历史。
	Chat(ctx context.Context, tenant *model.Tenant, req ChatRequest) (*ChatResult, error)
	// StreamChat 与 Chat 步骤相同，但把答案分块写入 writer。
	StreamChat(ctx context.Context, tenant *model.Tenant, req ChatRequest, writer llm.MessageWriter) (*ChatResult, error)
}

type chatService struct {
	videoRepo        repository.VideoRepository
	conversationRepo repository.ConversationRepository
	llmClient        llm.Client
	opts             ChatOptions
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(videoRepo repository.VideoRepository, conversationRepo repository.ConversationRepository, llmClient llm.Client, opts ChatOptions) ChatService {
	if opts.SystemTemplate == "" {
		opts.SystemTemplate = config.DefaultSystemTemplate
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultMemoryWriteTimeout
	}
	return &chatService{
		videoRepo:        videoRepo,
		conversationRepo: conversationRepo,
		llmClient:        llmClient,
		opts:             opts,
	}
}

// preparedChat 是调用模型前准备好的上下文。
type preparedChat struct {
	key      model.SessionKey
	model    string
	query    string
	messages []llm.Message
}

// Chat 依次完成：视频查找 → 读取历史 → 构建消息 → 调用模型 → 回写历史。
func (s *chatService) Chat(ctx context.Context, tenant *model.Tenant, req ChatRequest) (*ChatResult, error) {
	p, err := s.prepare(ctx, tenant, req)
	if err != nil {
		return nil, err
	}

	answer, err := s.llmClient.Complete(ctx, p.model, p.messages, s.opts.Generation)
	if err != nil {
		return nil, s.gatewayError(p, err)
	}

	return &ChatResult{Answer: answer, Degraded: !s.persist(ctx, p, answer)}, nil
}

// StreamChat 以流式方式回答，写历史的规则与 Chat 一致。
func (s *chatService) StreamChat(ctx context.Context, tenant *model.Tenant, req ChatRequest, writer llm.MessageWriter) (*ChatResult, error) {
	p, err := s.prepare(ctx, tenant, req)
	if err != nil {
		return nil, err
	}

	answer, err := s.llmClient.StreamChatMessages(ctx, p.model, p.messages, s.opts.Generation, writer)
	if err != nil {
		return nil, s.gatewayError(p, err)
	}

	return &ChatResult{Answer: answer, Degraded: !s.persist(ctx, p, answer)}, nil
}

// prepare 校验参数、查找视频并读取历史；任何失败都发生在调用模型之前。
func (s *chatService) prepare(ctx context.Context, tenant *model.Tenant, req ChatRequest) (*preparedChat, error) {
	if tenant == nil {
		return nil, ErrUnauthorized
	}
	query := strings.TrimSpace(req.UserQuery)
	if query == "" {
		return nil, fmt.Errorf("%w: user_query is required", ErrInvalidArgument)
	}
	// 历史以 JSON 存储，非法 UTF-8 无法原样保存
	if !utf8.ValidString(query) {
		return nil, fmt.Errorf("%w: user_query must be valid UTF-8", ErrInvalidArgument)
	}
	videoID := strings.TrimSpace(req.VideoID)
	if videoID == "" {
		return nil, fmt.Errorf("%w: video_id is required", ErrInvalidArgument)
	}
	key, err := model.NewSessionKey(tenant.ID, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	modelName, err := s.resolveModel(req.Model)
	if err != nil {
		return nil, err
	}

	video, err := s.videoRepo.FindByTenantAndID(ctx, tenant.ID, videoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVideoNotFound
		}
		return nil, fmt.Errorf("failed to load video: %w", err)
	}

	history, err := s.conversationRepo.GetHistory(ctx, key)
	if err != nil {
		log.Errorw("failed to load conversation history", "session", key.String(), "error", err)
		return nil, fmt.Errorf("%w: %v", ErrMemoryUnavailable, err)
	}

	return &preparedChat{
		key:      key,
		model:    modelName,
		query:    query,
		messages: s.composeMessages(s.buildSystemMessage(video.TranscriptText, query), history, query),
	}, nil
}

// resolveModel 返回本次使用的模型名；配置了允许列表时拒绝列表之外的模型。
func (s *chatService) resolveModel(requested string) (string, error) {
	name := strings.TrimSpace(requested)
	// 兼容 "gemini/<model>" 形式的模型名
	name = strings.TrimPrefix(name, "gemini/")
	if name == "" {
		name = s.opts.DefaultModel
	}
	if len(s.opts.AllowedModels) == 0 {
		return name, nil
	}
	for _, allowed := range s.opts.AllowedModels {
		if allowed == name {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: model %q is not allowed", ErrInvalidArgument, name)
}

func (s *chatService) buildSystemMessage(transcript, query string) string {
	r := strings.NewReplacer(
		"{transcript_text}", transcript,
		"{user_query}", query,
	)
	return r.Replace(s.opts.SystemTemplate)
}

// composeMessages 构建 [system] + 最近的历史 + [user]。
func (s *chatService) composeMessages(systemMsg string, history []model.ChatTurn, query string) []llm.Message {
	if w := s.opts.HistoryWindow; w > 0 && len(history) > w {
		history = history[len(history)-w:]
	}
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: string(model.RoleSystem), Content: systemMsg})
	for _, turn := range history {
		msgs = append(msgs, llm.Message{Role: string(turn.Role), Content: turn.Content})
	}
	msgs = append(msgs, llm.Message{Role: string(model.RoleUser), Content: query})
	return msgs
}

func (s *chatService) gatewayError(p *preparedChat, err error) error {
	if errors.Is(err, llm.ErrRateLimited) {
		log.Warnw("completion provider rate limited", "session", p.key.String(), "model", p.model)
		return ErrRateLimited
	}
	log.Errorw("completion request failed", "session", p.key.String(), "model", p.model, "error", err)
	return fmt.Errorf("%w: %v", ErrGateway, err)
}

// persist 依次写入用户消息与助手消息，返回 false 表示写入失败（降级成功）。
// 使用与客户端取消解耦的上下文，因为答案已经生成。
func (s *chatService) persist(ctx context.Context, p *preparedChat, answer string) bool {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.WriteTimeout)
	defer cancel()

	if err := s.conversationRepo.AddMessage(writeCtx, p.key, model.RoleUser, p.query); err != nil {
		log.Errorw("failed to save user turn", "session", p.key.String(), "error", err)
		return false
	}
	if err := s.conversationRepo.AddMessage(writeCtx, p.key, model.RoleAssistant, answer); err != nil {
		log.Errorw("failed to save assistant turn", "session", p.key.String(), "error", err)
		return false
	}
	return true
}
