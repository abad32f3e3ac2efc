// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Model      ModelConfig      `mapstructure:"model"`
	Chat       ChatConfig       `mapstructure:"chat"`
	RAG        RAGConfig        `mapstructure:"rag"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Search     SearchConfig     `mapstructure:"search"`
	Currency   CurrencyConfig   `mapstructure:"currency"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port       int              `mapstructure:"port"`
	Host       string           `mapstructure:"host"`
	Timeout    string           `mapstructure:"timeout"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
	Grpc       GrpcConfig       `mapstructure:"grpc"`
}

// GrpcConfig gRPC 服务配置
type GrpcConfig struct {
	Enable bool `mapstructure:"enable"`
	Port   int  `mapstructure:"port"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	Auth                   bool   `mapstructure:"auth"`
	RateLimit              bool   `mapstructure:"rate_limit"`
	RateLimitPerMinute     int    `mapstructure:"rate_limit_per_minute"`
	AnonRateLimitPerMinute int    `mapstructure:"anon_rate_limit_per_minute"`
	JWTKey                 string `mapstructure:"jwt_key"`
	JWTTimeout             string `mapstructure:"jwt_timeout"` // 如 "1h"
}

// ModelConfig 模型配置
type ModelConfig struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
}

// LLMConfig LLM 模型配置
type LLMConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// EmbeddingConfig Embedding 模型配置
type EmbeddingConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig 模型提供商配置
type ProviderConfig struct {
	APIKey  string               `mapstructure:"api_key"`
	BaseURL string               `mapstructure:"base_url"`
	Driver  string               `mapstructure:"driver"` // http | eino，空为 http
	Models  map[string]ModelInfo `mapstructure:"models"`
}

// ModelInfo 模型信息
type ModelInfo struct {
	Name          string  `mapstructure:"name"`
	ContextWindow int     `mapstructure:"context_window"`
	Temperature   float64 `mapstructure:"temperature"`
	Dimension     int     `mapstructure:"dimension"`
	MaxTokens     int     `mapstructure:"max_tokens"`
}

// DefaultsConfig 各档位模型，格式 provider.model_key
type DefaultsConfig struct {
	LLM       string `mapstructure:"llm"`
	Advanced  string `mapstructure:"advanced"`
	Fallback  string `mapstructure:"fallback"`
	Embedding string `mapstructure:"embedding"`
}

// ChatConfig 对话编排参数
type ChatConfig struct {
	AppName                  string  `mapstructure:"app_name"`
	AppVersion               string  `mapstructure:"app_version"`
	ConfidenceThreshold      float64 `mapstructure:"confidence_threshold"`
	MaxContextMessages       int     `mapstructure:"max_context_messages"`
	SummarizeTokenThreshold  int     `mapstructure:"summarize_token_threshold"`
	SessionMemoryMaxMessages int     `mapstructure:"session_memory_max_messages"`
	SessionTTL               string  `mapstructure:"session_ttl"`
	DailyTokenBudget         int     `mapstructure:"daily_token_budget"`
	ComplexityRouting        bool    `mapstructure:"complexity_routing"`
}

// RAGConfig 检索增强配置
type RAGConfig struct {
	TopK            int     `mapstructure:"top_k"`
	Threshold       float64 `mapstructure:"threshold"`
	CacheTTL        string  `mapstructure:"cache_ttl"`
	CompareCacheTTL string  `mapstructure:"compare_cache_ttl"`
	ProductCacheTTL string  `mapstructure:"product_cache_ttl"`
	ProductIndex    string  `mapstructure:"product_index"`
	ArticleIndex    string  `mapstructure:"article_index"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Metadata MetadataConfig `mapstructure:"metadata"`
	Vector   VectorConfig   `mapstructure:"vector"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

// MetadataConfig 元数据存储配置（memory | postgres | sqlite）
type MetadataConfig struct {
	Type     string `mapstructure:"type"`
	DSN      string `mapstructure:"dsn"`
	PoolSize int    `mapstructure:"pool_size"`
}

// VectorConfig 向量存储配置（memory 为内置内存；redis 使用 eino-ext 组件）
type VectorConfig struct {
	Type       string `mapstructure:"type"`
	Addr       string `mapstructure:"addr"`
	DB         string `mapstructure:"db"` // Redis DB 编号，如 "0"
	Collection string `mapstructure:"collection"`
	Password   string `mapstructure:"password"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Type     string `mapstructure:"type"`
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
}

// SearchConfig Web 搜索配置
type SearchConfig struct {
	Provider string `mapstructure:"provider"` // tavily | brave | none
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	Timeout  string `mapstructure:"timeout"`
}

// CurrencyConfig 汇率服务配置
type CurrencyConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	CacheTTL    string `mapstructure:"cache_ttl"`
	RefreshCron string `mapstructure:"refresh_cron"`
}

// SecretsConfig 密钥存储配置
type SecretsConfig struct {
	Provider   string `mapstructure:"provider"` // env | memory | vault
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	PathPrefix string `mapstructure:"path_prefix"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`

	// MetricsEndpoint OTLP gRPC 地址，非空时导出 Hertz 服务端指标
	MetricsEndpoint string `mapstructure:"metrics_endpoint"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
	Port   int  `mapstructure:"port"`
}

// RateLimitsConfig 限流配置
type RateLimitsConfig struct {
	LLM map[string]LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// Default 返回全部默认值，YAML 中未出现的字段沿用这里的值
func Default() *Config {
	return &Config{
		API: APIConfig{
			Port:    8100,
			Timeout: "60s",
			Middleware: MiddlewareConfig{
				RateLimit:              true,
				RateLimitPerMinute:     30,
				AnonRateLimitPerMinute: 10,
				JWTTimeout:             "24h",
			},
			Grpc: GrpcConfig{Port: 9100},
		},
		Chat: ChatConfig{
			AppName:                  "House AI",
			AppVersion:               "1.0.0",
			ConfidenceThreshold:      0.65,
			MaxContextMessages:       5,
			SummarizeTokenThreshold:  3000,
			SessionMemoryMaxMessages: 20,
			SessionTTL:               "24h",
			DailyTokenBudget:         100000,
		},
		RAG: RAGConfig{
			TopK:            3,
			Threshold:       0.75,
			CacheTTL:        "6h",
			CompareCacheTTL: "12h",
			ProductCacheTTL: "24h",
			ProductIndex:    "products",
			ArticleIndex:    "articles",
		},
		Search:   SearchConfig{Provider: "tavily", Timeout: "10s"},
		Currency: CurrencyConfig{BaseURL: "https://api.exchangerate-api.com/v4", CacheTTL: "48h", RefreshCron: "0 */6 * * *"},
		Secrets:  SecretsConfig{Provider: "env"},
		Log:      LogConfig{Level: "info", Format: "json"},
	}
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	config := Default()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(config)
	return config, nil
}

// replaceEnvVars 替换 ${ENV} 形式的 API Key
func replaceEnvVars(config *Config) {
	resolve := func(providers map[string]ProviderConfig) {
		for name, pc := range providers {
			if val, ok := expandEnv(pc.APIKey); ok {
				pc.APIKey = val
				providers[name] = pc
			}
		}
	}
	resolve(config.Model.LLM.Providers)
	resolve(config.Model.Embedding.Providers)

	if val, ok := expandEnv(config.Search.APIKey); ok {
		config.Search.APIKey = val
	}
	if val, ok := expandEnv(config.API.Middleware.JWTKey); ok {
		config.API.Middleware.JWTKey = val
	}
	if val, ok := expandEnv(config.Storage.Metadata.DSN); ok {
		config.Storage.Metadata.DSN = val
	}
	if val, ok := expandEnv(config.Secrets.Token); ok {
		config.Secrets.Token = val
	}
}

func expandEnv(raw string) (string, bool) {
	if !strings.HasPrefix(raw, "$") {
		return "", false
	}
	envVar := strings.TrimPrefix(strings.TrimSuffix(raw, "}"), "${")
	envVar = strings.TrimPrefix(envVar, "$")
	val := os.Getenv(envVar)
	return val, val != ""
}

// LoadAPIConfig 加载 configs/api.yaml 并合并同目录的 model.yaml
func LoadAPIConfig() (*Config, error) {
	return LoadWithModel("configs/api.yaml")
}

// LoadWithModel 加载 path，并尝试合并同目录下 model.yaml 的 model 段
func LoadWithModel(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	modelPath := filepath.Join(filepath.Dir(path), "model.yaml")
	if _, statErr := os.Stat(modelPath); statErr == nil {
		modelCfg, err := LoadConfig(modelPath)
		if err != nil {
			return nil, err
		}
		cfg.Model = modelCfg.Model
	}
	return cfg, nil
}

// ParseDuration 解析时长字符串，无效或空时返回 defaultVal
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
