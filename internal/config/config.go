// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix 是环境变量覆盖配置时使用的前缀，例如 VIDEOCHAT_LLM_API_KEY。
const EnvPrefix = "VIDEOCHAT"

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Memory        MemoryConfig        `mapstructure:"memory"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Admin         AdminConfig         `mapstructure:"admin"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	LLM           LLMConfig           `mapstructure:"llm"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port            string `mapstructure:"port"`
	Mode            string `mapstructure:"mode"`
	ShutdownSeconds int    `mapstructure:"shutdown_seconds"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL       MySQLConfig `mapstructure:"mysql"`
	Redis       RedisConfig `mapstructure:"redis"`
	AutoMigrate bool        `mapstructure:"auto_migrate"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MemoryConfig 存储会话记忆（对话历史）相关的配置。
type MemoryConfig struct {
	// TTLSeconds 是会话空闲过期时间，每次追加消息都会重置。
	TTLSeconds int `mapstructure:"ttl_seconds"`
	// MaxTurns 大于 0 时，每个会话只保留最近的 MaxTurns 条消息；0 表示不限制。
	MaxTurns int `mapstructure:"max_turns"`
	// HistoryWindow 是构建 prompt 时回放的历史消息条数；0 表示全部回放。
	HistoryWindow int `mapstructure:"history_window"`
	// WriteTimeoutSeconds 是回写对话历史时使用的超时时间。
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds"`
}

// TTL 返回会话过期时间。
func (m MemoryConfig) TTL() time.Duration {
	return time.Duration(m.TTLSeconds) * time.Second
}

// WriteTimeout 返回回写对话历史的超时时间。
func (m MemoryConfig) WriteTimeout() time.Duration {
	return time.Duration(m.WriteTimeoutSeconds) * time.Second
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
}

// AdminConfig 存储管理员账号配置，密码以 bcrypt 哈希形式保存。
type AdminConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
	ChunkSize int    `mapstructure:"chunk_size"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Endpoint         string `mapstructure:"endpoint"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	BucketName       string `mapstructure:"bucket_name"`
	URLExpireMinutes int    `mapstructure:"url_expire_minutes"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey         string              `mapstructure:"api_key"`
	BaseURL        string              `mapstructure:"base_url"`
	Model          string              `mapstructure:"model"`
	AllowedModels  []string            `mapstructure:"allowed_models"`
	TimeoutSeconds int                 `mapstructure:"timeout_seconds"`
	Generation     LLMGenerationConfig `mapstructure:"generation"`
	Prompt         LLMPromptConfig     `mapstructure:"prompt"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMPromptConfig 配置系统提示模板，支持 {transcript_text} 与 {user_query} 占位符。
type LLMPromptConfig struct {
	SystemTemplate string `mapstructure:"system_template"`
}

// DefaultSystemTemplate 是未配置模板时使用的系统提示。
const DefaultSystemTemplate = `
You are a helpful teaching assistant for a video course.
You are provided with the FULL TRANSCRIPT of the video below.

CONTEXT:
- Current Student query : {user_query}

INSTRUCTIONS:
1. Answer the student's question based ONLY on the provided transcript.
2. If the question is about the current scene, prioritize the text around it.
3. If the answer is not in the video, say "I cannot find that information in this video."
4. Be concise and encouraging.

TRANSCRIPT:
{transcript_text}
`

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_seconds", 5)
	v.SetDefault("database.mysql.dsn", "")
	v.SetDefault("database.redis.addr", "localhost:6379")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("memory.ttl_seconds", 3600)
	v.SetDefault("memory.max_turns", 0)
	v.SetDefault("memory.history_window", 20)
	v.SetDefault("memory.write_timeout_seconds", 5)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_token_expire_hours", 12)
	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.password_hash", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "transcript-index")
	v.SetDefault("kafka.group_id", "video-chat-go-indexer")
	v.SetDefault("elasticsearch.enabled", false)
	v.SetDefault("elasticsearch.addresses", "http://localhost:9200")
	v.SetDefault("elasticsearch.username", "")
	v.SetDefault("elasticsearch.password", "")
	v.SetDefault("elasticsearch.index_name", "video_transcripts")
	v.SetDefault("elasticsearch.chunk_size", 1000)
	v.SetDefault("minio.enabled", false)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket_name", "transcripts")
	v.SetDefault("minio.url_expire_minutes", 60)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://generativelanguage.googleapis.com/v1beta/openai")
	v.SetDefault("llm.model", "gemini-2.5-flash-lite")
	v.SetDefault("llm.allowed_models", []string{})
	v.SetDefault("llm.timeout_seconds", 60)
	v.SetDefault("llm.generation.temperature", 0)
	v.SetDefault("llm.generation.top_p", 0)
	v.SetDefault("llm.generation.max_tokens", 0)
	v.SetDefault("llm.prompt.system_template", DefaultSystemTemplate)
}

// Load 从指定路径读取 YAML 配置文件，叠加默认值与环境变量后返回配置。
// configPath 为空时只使用默认值和环境变量。
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 检查配置中的必填项与取值范围。
func (c Config) Validate() error {
	if c.Memory.TTLSeconds <= 0 {
		return fmt.Errorf("memory.ttl_seconds must be positive, got %d", c.Memory.TTLSeconds)
	}
	if c.Memory.MaxTurns < 0 {
		return fmt.Errorf("memory.max_turns must not be negative, got %d", c.Memory.MaxTurns)
	}
	if c.Memory.HistoryWindow < 0 {
		return fmt.Errorf("memory.history_window must not be negative, got %d", c.Memory.HistoryWindow)
	}
	if c.Elasticsearch.ChunkSize <= 0 {
		return fmt.Errorf("elasticsearch.chunk_size must be positive, got %d", c.Elasticsearch.ChunkSize)
	}
	if c.Kafka.Enabled && !c.Elasticsearch.Enabled {
		return fmt.Errorf("kafka.enabled requires elasticsearch.enabled")
	}
	return nil
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
