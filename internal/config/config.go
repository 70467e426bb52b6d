// Package config 提供配置加载和管理功能
package config

import (
	"fmt"
	"time"
)

// 单元策略
const (
	// UnitPolicyReuse 区间被现有单元完整覆盖时复用，否则扩展并重新生成相交单元
	UnitPolicyReuse = "reuse"
	// UnitPolicyRegenerate 总是重新生成与区间相交的单元
	UnitPolicyRegenerate = "regenerate"
	// UnitPolicyNone 不生成单元
	UnitPolicyNone = "none"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Blueprint     BlueprintConfig     `yaml:"blueprint" mapstructure:"blueprint"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Lock          LockConfig          `yaml:"lock" mapstructure:"lock"`
	Messaging     MessagingConfig     `yaml:"messaging" mapstructure:"messaging"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host        string        `yaml:"host" mapstructure:"host"`
	Port        int           `yaml:"port" mapstructure:"port"`
	ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	// WriteTimeout 为 0 时不限制，流式生成可能持续数分钟
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// Addr 返回 host:port
func (h HTTPServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// BlueprintConfig 章节目录生成配置
type BlueprintConfig struct {
	// DataDir 小说数据根目录，每部小说一个子目录
	DataDir          string `yaml:"data_dir" mapstructure:"data_dir"`
	DirectoryFile    string `yaml:"directory_file" mapstructure:"directory_file"`
	ArchitectureFile string `yaml:"architecture_file" mapstructure:"architecture_file"`

	// Provider 使用的 LLM 提供商，为空时使用 llm.default_provider
	Provider string `yaml:"provider" mapstructure:"provider"`
	// MaxTokens 单次调用的输出 token 上限，决定分块大小
	MaxTokens           int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	TokensPerChapter    int    `yaml:"tokens_per_chapter" mapstructure:"tokens_per_chapter"`
	ContextChapterLimit int    `yaml:"context_chapter_limit" mapstructure:"context_chapter_limit"`
	FallbackUnitWidth   int    `yaml:"fallback_unit_width" mapstructure:"fallback_unit_width"`
	StreamChunkRunes    int    `yaml:"stream_chunk_runes" mapstructure:"stream_chunk_runes"`
	UnitPolicy          string `yaml:"unit_policy" mapstructure:"unit_policy"`
	UserGuidance        string `yaml:"user_guidance" mapstructure:"user_guidance"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
}

// ProviderConfig LLM 提供商配置
type ProviderConfig struct {
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// LockConfig 区间生成锁配置
type LockConfig struct {
	// Backend memory（单进程）或 redis（多进程/多实例）
	Backend string        `yaml:"backend" mapstructure:"backend"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// MessagingConfig 消息队列配置
type MessagingConfig struct {
	RedisStream RedisStreamConfig `yaml:"redis_stream" mapstructure:"redis_stream"`
}

// RedisStreamConfig Redis Stream 配置
type RedisStreamConfig struct {
	MaxLen              int           `yaml:"max_len" mapstructure:"max_len"`
	ConsumerGroupPrefix string        `yaml:"consumer_group_prefix" mapstructure:"consumer_group_prefix"`
	BlockTimeout        time.Duration `yaml:"block_timeout" mapstructure:"block_timeout"`
	ClaimInterval       time.Duration `yaml:"claim_interval" mapstructure:"claim_interval"`
	RetryLimit          int           `yaml:"retry_limit" mapstructure:"retry_limit"`
	RetryBackoff        BackoffConfig `yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial" mapstructure:"initial"`
	Max        time.Duration `yaml:"max" mapstructure:"max"`
	Multiplier float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Port    int    `yaml:"port" mapstructure:"port"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	CORS CORSConfig `yaml:"cors" mapstructure:"cors"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	b := c.Blueprint
	if b.MaxTokens <= 0 {
		return fmt.Errorf("blueprint.max_tokens must be positive, got %d", b.MaxTokens)
	}
	if b.TokensPerChapter <= 0 {
		return fmt.Errorf("blueprint.tokens_per_chapter must be positive, got %d", b.TokensPerChapter)
	}
	if b.ContextChapterLimit <= 0 {
		return fmt.Errorf("blueprint.context_chapter_limit must be positive, got %d", b.ContextChapterLimit)
	}
	switch b.UnitPolicy {
	case UnitPolicyReuse, UnitPolicyRegenerate, UnitPolicyNone:
	default:
		return fmt.Errorf("blueprint.unit_policy must be one of reuse/regenerate/none, got %q", b.UnitPolicy)
	}
	switch c.Lock.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("lock.backend must be memory or redis, got %q", c.Lock.Backend)
	}
	return nil
}

// ProviderName 目录生成使用的提供商
func (c *Config) ProviderName() string {
	if c.Blueprint.Provider != "" {
		return c.Blueprint.Provider
	}
	return c.LLM.DefaultProvider
}

// Addr 返回 host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
