// Package model 包含了应用的数据模型定义。
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Role 是对话消息的角色，只允许 system、user、assistant 三种取值。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ErrInvalidRole 表示角色不在允许的取值范围内。
var ErrInvalidRole = errors.New("invalid chat role")

// ParseRole 将字符串解析为 Role，非法取值返回 ErrInvalidRole。
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleSystem, RoleUser, RoleAssistant:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// Valid 报告角色是否合法。
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// UnmarshalText 保证从 JSON 解码出的角色同样经过校验。
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ChatTurn 代表存储在 Redis 中的单条对话消息。
// 顺序只由追加顺序决定，Timestamp 仅用于诊断。
type ChatTurn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// NewChatTurn 创建一条经过角色校验的消息。
func NewChatTurn(role Role, content string) (ChatTurn, error) {
	if !role.Valid() {
		return ChatTurn{}, fmt.Errorf("%w: %q", ErrInvalidRole, string(role))
	}
	return ChatTurn{Role: role, Content: content}, nil
}

// DecodeChatTurn 从 Redis 中的 JSON 记录解码一条消息。
func DecodeChatTurn(raw string) (ChatTurn, error) {
	var turn ChatTurn
	if err := json.Unmarshal([]byte(raw), &turn); err != nil {
		return ChatTurn{}, err
	}
	if turn.Role == "" {
		return ChatTurn{}, fmt.Errorf("%w: missing role", ErrInvalidRole)
	}
	return turn, nil
}

// ErrInvalidSessionKey 表示会话键缺少租户或会话 ID。
var ErrInvalidSessionKey = errors.New("invalid session key")

// SessionKey 是对话日志的复合地址 (tenant_id, session_id)。
// 字段不导出，只能通过 NewSessionKey 构造，从而保证两个字段同时存在。
type SessionKey struct {
	tenantID  uint
	sessionID string
}

// NewSessionKey 构造一个复合会话键，租户 ID 不能为 0，会话 ID 不能为空。
func NewSessionKey(tenantID uint, sessionID string) (SessionKey, error) {
	if tenantID == 0 {
		return SessionKey{}, fmt.Errorf("%w: tenant id is required", ErrInvalidSessionKey)
	}
	if strings.TrimSpace(sessionID) == "" {
		return SessionKey{}, fmt.Errorf("%w: session id is required", ErrInvalidSessionKey)
	}
	return SessionKey{tenantID: tenantID, sessionID: sessionID}, nil
}

// TenantID 返回会话所属租户。
func (k SessionKey) TenantID() uint { return k.tenantID }

// SessionID 返回客户端提供的会话 ID。
func (k SessionKey) SessionID() string { return k.sessionID }

// IsZero 报告该键是否未经 NewSessionKey 构造。
func (k SessionKey) IsZero() bool { return k.tenantID == 0 }

// String 返回 "tenant_id:session_id" 形式的复合键。
// 租户 ID 是纯数字，因此第一个冒号总是分隔符，session_id 中的冒号不会造成歧义。
func (k SessionKey) String() string {
	return strconv.FormatUint(uint64(k.tenantID), 10) + ":" + k.sessionID
}
