// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"video-chat-go/internal/model"
	"video-chat-go/pkg/log"
)

// conversationKeyPrefix 是 Redis 中对话日志键的前缀，完整键为 chat:{tenant_id}:{session_id}。
const conversationKeyPrefix = "chat:"

// DefaultConversationTTL 是会话的默认空闲过期时间。
const DefaultConversationTTL = time.Hour

// ConversationRepository 定义了对话历史记录（会话记忆）的操作接口。
// 所有方法都以 model.SessionKey 寻址，不存在只按 session_id 访问的路径。
type ConversationRepository interface {
	// GetHistory 按追加顺序返回会话中的全部消息；会话不存在或已过期时返回空切片。
	// 读取不会刷新过期时间。
	GetHistory(ctx context.Context, key model.SessionKey) ([]model.ChatTurn, error)
	// AddMessage 向会话尾部追加一条消息，并把过期时间重置为 now + TTL。
	// content 以 JSON 字符串保存，非法 UTF-8 字节会被替换为 U+FFFD。
	AddMessage(ctx context.Context, key model.SessionKey, role model.Role, content string) error
	// TTL 返回会话剩余的空闲时间；会话不存在时返回 0。
	TTL(ctx context.Context, key model.SessionKey) (time.Duration, error)
	// ListSessions 返回某个租户下仍然存活的会话 ID。
	ListSessions(ctx context.Context, tenantID uint) ([]string, error)
}

type redisConversationRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
	maxTurns    int
	now         func() time.Time
}

// ConversationOption 用于定制 ConversationRepository。
type ConversationOption func(*redisConversationRepository)

// WithMaxTurns 设置每个会话保留的最大消息数，0 表示不限制。
func WithMaxTurns(n int) ConversationOption {
	return func(r *redisConversationRepository) {
		if n > 0 {
			r.maxTurns = n
		}
	}
}

// WithClock 替换时间来源，仅影响消息上的诊断时间戳。
func WithClock(now func() time.Time) ConversationOption {
	return func(r *redisConversationRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
// redisClient 是进程内共享的客户端，可被并发的请求安全使用。
func NewConversationRepository(redisClient *redis.Client, ttl time.Duration, opts ...ConversationOption) ConversationRepository {
	if ttl <= 0 {
		ttl = DefaultConversationTTL
	}
	r := &redisConversationRepository{
		redisClient: redisClient,
		ttl:         ttl,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func conversationKey(key model.SessionKey) string {
	return conversationKeyPrefix + key.String()
}

// GetHistory 从 Redis 获取对话历史记录。
func (r *redisConversationRepository) GetHistory(ctx context.Context, key model.SessionKey) ([]model.ChatTurn, error) {
	if key.IsZero() {
		return nil, model.ErrInvalidSessionKey
	}
	rawTurns, err := r.redisClient.LRange(ctx, conversationKey(key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}

	turns := make([]model.ChatTurn, 0, len(rawTurns))
	for i, raw := range rawTurns {
		turn, err := model.DecodeChatTurn(raw)
		if err != nil {
			// 单条损坏的记录不应让整个会话不可用
			log.Warnw("skipping malformed chat turn", "key", conversationKey(key), "index", i, "error", err)
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// AddMessage 在一个 MULTI/EXEC 事务中执行 RPUSH + EXPIRE（以及可选的 LTRIM），
// 因此追加和过期时间刷新对每次调用都是原子的。
func (r *redisConversationRepository) AddMessage(ctx context.Context, key model.SessionKey, role model.Role, content string) error {
	if key.IsZero() {
		return model.ErrInvalidSessionKey
	}
	turn, err := model.NewChatTurn(role, content)
	if err != nil {
		return err
	}
	ts := r.now().UTC()
	turn.Timestamp = &ts

	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal chat turn: %w", err)
	}

	redisKey := conversationKey(key)
	_, err = r.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, redisKey, payload)
		if r.maxTurns > 0 {
			pipe.LTrim(ctx, redisKey, int64(-r.maxTurns), -1)
		}
		pipe.Expire(ctx, redisKey, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append chat turn: %w", err)
	}
	return nil
}

// TTL 返回会话剩余的空闲时间。
func (r *redisConversationRepository) TTL(ctx context.Context, key model.SessionKey) (time.Duration, error) {
	if key.IsZero() {
		return 0, model.ErrInvalidSessionKey
	}
	d, err := r.redisClient.TTL(ctx, conversationKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get conversation ttl: %w", err)
	}
	// -2: 键不存在；-1: 没有过期时间（不应出现）
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

// ListSessions 使用 SCAN 遍历 chat:{tenant_id}:* 并返回会话 ID。
func (r *redisConversationRepository) ListSessions(ctx context.Context, tenantID uint) ([]string, error) {
	if tenantID == 0 {
		return nil, model.ErrInvalidSessionKey
	}
	prefix := conversationKeyPrefix + strconv.FormatUint(uint64(tenantID), 10) + ":"
	sessions := make([]string, 0)
	seen := make(map[string]struct{})
	iter := r.redisClient.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		// SCAN 可能重复返回同一个键
		sessionID := strings.TrimPrefix(iter.Val(), prefix)
		if _, ok := seen[sessionID]; ok {
			continue
		}
		seen[sessionID] = struct{}{}
		sessions = append(sessions, sessionID)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan conversation keys: %w", err)
	}
	return sessions, nil
}
