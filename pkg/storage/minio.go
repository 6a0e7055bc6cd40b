// Package storage提供了与对象存储服务（如 MinIO）交互的功能。
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"video-chat-go/internal/config"
	"video-chat-go/pkg/log"
)

// TranscriptArchive 把转写文本归档到 MinIO，并为其生成临时下载链接。
type TranscriptArchive struct {
	client     *minio.Client
	bucketName string
	urlExpiry  time.Duration
}

// NewTranscriptArchive 初始化 MinIO 客户端并确保指定的存储桶存在。
func NewTranscriptArchive(cfg config.MinIOConfig) (*TranscriptArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}
	log.Info("MinIO 客户端初始化成功")

	// 检查存储桶 (Bucket) 是否存在，如果不存在则创建
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
		log.Infof("存储桶 '%s' 创建成功", cfg.BucketName)
	}

	expiry := time.Duration(cfg.URLExpireMinutes) * time.Minute
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &TranscriptArchive{client: client, bucketName: cfg.BucketName, urlExpiry: expiry}, nil
}

// ObjectName 返回某个租户视频转写文本的对象名。
func ObjectName(tenantID uint, videoID string) string {
	return fmt.Sprintf("transcripts/%d/%s.txt", tenantID, videoID)
}

// Put 上传（覆盖）转写文本。
func (a *TranscriptArchive) Put(ctx context.Context, tenantID uint, videoID, text string) error {
	objectName := ObjectName(tenantID, videoID)
	_, err := a.client.PutObject(ctx, a.bucketName, objectName, strings.NewReader(text), int64(len(text)), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
	})
	if err != nil {
		return fmt.Errorf("上传转写文本到 MinIO 失败: %w", err)
	}
	return nil
}

// PresignedURL generates a presigned URL for a transcript object.
func (a *TranscriptArchive) PresignedURL(ctx context.Context, tenantID uint, videoID string) (string, error) {
	presignedURL, err := a.client.PresignedGetObject(ctx, a.bucketName, ObjectName(tenantID, videoID), a.urlExpiry, nil)
	if err != nil {
		log.Errorf("Error generating presigned URL: %s", err)
		return "", err
	}
	return presignedURL.String(), nil
}
