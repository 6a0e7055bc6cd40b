package service

import (
	"errors"

	"video-chat-go/internal/repository"
)

// 业务层错误，handler 通过 errors.Is 映射为 HTTP 状态码。
var (
	// ErrUnauthorized 表示缺少或无法识别的租户 API Key。
	ErrUnauthorized = errors.New("invalid API key")
	// ErrVideoNotFound 表示视频在当前租户下不存在。
	ErrVideoNotFound = errors.New("video not found")
	// ErrInvalidArgument 表示请求参数不合法。
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrRateLimited 表示模型服务限流，调用方应稍后重试。
	ErrRateLimited = errors.New("completion provider rate limited")
	// ErrGateway 表示模型服务的其他失败，细节不对外暴露。
	ErrGateway = errors.New("error during the request with the ai model")
	// ErrMemoryUnavailable 表示对话历史无法读取，此时不会回答。
	ErrMemoryUnavailable = errors.New("conversation memory unavailable")
	// ErrConflict 表示目录写入违反了唯一性约束。
	ErrConflict = repository.ErrConflict
	// ErrInvalidCredentials 表示管理员用户名或密码错误。
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrSearchDisabled 表示未启用转写检索。
	ErrSearchDisabled = errors.New("transcript search is not enabled")
)
