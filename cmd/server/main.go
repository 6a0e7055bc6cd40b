// Package main 是应用程序的入口点。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"video-chat-go/internal/config"
	"video-chat-go/internal/handler"
	"video-chat-go/internal/pipeline"
	"video-chat-go/internal/repository"
	"video-chat-go/internal/service"
	"video-chat-go/pkg/database"
	"video-chat-go/pkg/es"
	"video-chat-go/pkg/kafka"
	"video-chat-go/pkg/llm"
	"video-chat-go/pkg/log"
	"video-chat-go/pkg/storage"
	"video-chat-go/pkg/token"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库和 Redis
	db, err := database.NewMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		log.Fatal("MySQL 初始化失败", err)
	}
	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			log.Fatal("数据库迁移失败", err)
		}
	}
	rdb, err := database.NewRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	if err != nil {
		log.Fatal("Redis 初始化失败", err)
	}
	defer rdb.Close()

	// 4. 初始化 Repository
	tenantRepo := repository.NewTenantRepository(db)
	videoRepo := repository.NewVideoRepository(db)
	conversationRepo := repository.NewConversationRepository(rdb, cfg.Memory.TTL(), repository.WithMaxTurns(cfg.Memory.MaxTurns))

	// 5. 可选组件：转写归档、检索索引与索引任务队列
	var archive service.TranscriptArchive
	if cfg.MinIO.Enabled {
		a, err := storage.NewTranscriptArchive(cfg.MinIO)
		if err != nil {
			log.Fatal("MinIO 初始化失败", err)
		}
		archive = a
	}

	var (
		searcher  service.ChunkSearcher
		publisher service.TaskPublisher
		processor *pipeline.Processor
		producer  *kafka.Producer
	)
	if cfg.Elasticsearch.Enabled {
		esClient, err := es.NewClient(cfg.Elasticsearch)
		if err != nil {
			log.Fatal("Elasticsearch 初始化失败", err)
		}
		searcher = esClient
		processor = pipeline.NewProcessor(esClient, videoRepo, cfg.Elasticsearch.ChunkSize)
		// 没有 Kafka 时在摄入请求中同步建立索引
		publisher = processor
		if cfg.Kafka.Enabled {
			producer = kafka.NewProducer(cfg.Kafka)
			publisher = producer
		}
	}

	// 6. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)
	llmClient := llm.NewClient(cfg.LLM)
	deps := handler.RouterDeps{
		TenantService:       service.NewTenantService(tenantRepo),
		IngestService:       service.NewIngestService(videoRepo, publisher, archive),
		ChatService:         service.NewChatService(videoRepo, conversationRepo, llmClient, service.ChatOptionsFromConfig(cfg)),
		ConversationService: service.NewConversationService(conversationRepo),
		SearchService:       service.NewSearchService(searcher),
		AdminService:        service.NewAdminService(tenantRepo, jwtManager, cfg.Admin),
		JWTManager:          jwtManager,
	}

	// 7. 启动后台 Kafka 消费者，停机时通过 ctx 取消
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	var consumerWG sync.WaitGroup
	if producer != nil {
		consumerWG.Add(1)
		go func() {
			defer consumerWG.Done()
			kafka.StartConsumer(consumerCtx, cfg.Kafka, processor, rdb)
		}()
	}

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(deps)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	shutdown := time.Duration(cfg.Server.ShutdownSeconds) * time.Second
	if shutdown <= 0 {
		shutdown = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdown)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	stopConsumer()
	consumerWG.Wait()
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Errorf("关闭 Kafka 生产者失败: %v", err)
		}
	}
	log.Info("服务已优雅关闭")
}
