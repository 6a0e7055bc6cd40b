package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"video-chat-go/pkg/log"
)

// NewRedis 创建 Redis 客户端连接并测试连通性。
// 返回的客户端在进程内共享，可被并发的请求安全使用。
func NewRedis(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Redis client connected successfully")
	return rdb, nil
}
