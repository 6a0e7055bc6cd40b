// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"video-chat-go/internal/config"
	"video-chat-go/pkg/log"
	"video-chat-go/pkg/tasks"
)

const (
	// MaxAttempts 是单个索引任务的最大处理次数，超过后提交 offset 放弃重试。
	MaxAttempts = 3
	// attemptsTTL 是失败计数在 Redis 中的保留时间。
	attemptsTTL = 24 * time.Hour
	// retryBackoff 是第一次重试前的等待时间，之后每次翻倍。
	retryBackoff = 2 * time.Second
	// fetchBackoff 是读取消息失败后的等待时间。
	fetchBackoff = 5 * time.Second
)

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.TranscriptIndexTask) error
}

// Producer 发送转写索引任务。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(cfg.Brokers, ",")...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

// PublishIndexTask 发送一个转写索引任务到 Kafka，以 tenant/video 作为消息 key 保证同一视频的任务有序。
func (p *Producer) PublishIndexTask(ctx context.Context, task tasks.TranscriptIndexTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(fmt.Sprintf("%d:%s", task.TenantID, task.VideoID)),
		Value: taskBytes,
	})
}

// Close 关闭生产者。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// AttemptsKey 返回某个任务失败计数的 Redis key。
func AttemptsKey(task tasks.TranscriptIndexTask) string {
	return fmt.Sprintf("kafka:attempts:%d:%s", task.TenantID, task.VideoID)
}

// RecordFailure 使用 Redis 累计失败次数（跨进程重启），返回 true 表示已达到 MaxAttempts。
func RecordFailure(ctx context.Context, rdb *redis.Client, task tasks.TranscriptIndexTask) (bool, error) {
	key := AttemptsKey(task)
	attempts, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	_ = rdb.Expire(ctx, key, attemptsTTL).Err()
	return attempts >= MaxAttempts, nil
}

// ClearFailures 清理失败计数。
func ClearFailures(ctx context.Context, rdb *redis.Client, task tasks.TranscriptIndexTask) {
	_ = rdb.Del(ctx, AttemptsKey(task)).Err()
}

// retryPolicy 控制单个任务的原地重试。
type retryPolicy struct {
	maxAttempts int
	backoff     time.Duration
	// recordFailure 记录一次失败，返回 true 表示跨重启累计的失败次数已达上限；可以为 nil。
	recordFailure func(ctx context.Context, task tasks.TranscriptIndexTask) (bool, error)
}

// processWithRetry 原地重试 Process，直到成功、达到上限或 ctx 被取消，返回实际尝试的次数。
// 两次尝试之间的等待时间按 backoff 指数增长。
func processWithRetry(ctx context.Context, processor TaskProcessor, task tasks.TranscriptIndexTask, policy retryPolicy) (int, error) {
	for attempt := 1; ; attempt++ {
		err := processor.Process(ctx, task)
		if err == nil {
			return attempt, nil
		}
		log.Warnw("处理转写索引任务失败", "tenant_id", task.TenantID, "video_id", task.VideoID, "attempt", attempt, "error", err)

		giveUp := attempt >= policy.maxAttempts
		if policy.recordFailure != nil {
			exhausted, recErr := policy.recordFailure(ctx, task)
			if recErr != nil {
				log.Warnw("记录失败次数失败", "tenant_id", task.TenantID, "video_id", task.VideoID, "error", recErr)
			} else if exhausted {
				giveUp = true
			}
		}
		if giveUp {
			return attempt, err
		}
		if !sleepCtx(ctx, policy.backoff<<(attempt-1)) {
			return attempt, fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		}
	}
}

// sleepCtx 等待 d，ctx 先结束时返回 false。
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// StartConsumer 启动一个 Kafka 消费者来处理转写索引任务，ctx 取消时退出。
// 失败的任务在提交 offset 之前原地重试，最多 MaxAttempts 次；Redis 计数用于跨重启累计。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor, rdb *redis.Client) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  strings.Split(cfg.Brokers, ","),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	policy := retryPolicy{
		maxAttempts: MaxAttempts,
		backoff:     retryBackoff,
		recordFailure: func(ctx context.Context, task tasks.TranscriptIndexTask) (bool, error) {
			return RecordFailure(ctx, rdb, task)
		},
	}

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Errorf("从 Kafka 读取消息失败，%s 后重试: %v", fetchBackoff, err)
			if !sleepCtx(ctx, fetchBackoff) {
				log.Info("Kafka 消费者已停止")
				return
			}
			continue
		}

		var task tasks.TranscriptIndexTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			if err := r.CommitMessages(ctx, m); err != nil {
				log.Errorf("提交错误消息失败: %v", err)
			}
			continue
		}

		log.Infow("开始处理转写索引任务", "tenant_id", task.TenantID, "video_id", task.VideoID, "offset", m.Offset)
		attempts, err := processWithRetry(ctx, processor, task, policy)
		if err != nil {
			if ctx.Err() != nil {
				// 停机中断了重试，不提交 offset，重启后会重新投递
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Errorf("转写索引任务失败 %d 次，提交 offset 终止重试: tenant=%d video=%s err=%v", attempts, task.TenantID, task.VideoID, err)
		} else {
			ClearFailures(ctx, rdb, task)
		}
		if err := r.CommitMessages(ctx, m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}
}
