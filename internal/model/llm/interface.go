package llm

import (
	"context"
	"fmt"
	"strings"

	"house-ai/pkg/config"
)

// 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultMaxTokens 未指定 MaxTokens 时的回复上限
const DefaultMaxTokens = 1024

// Client LLM 客户端接口
type Client interface {
	// Complete 一次性生成
	Complete(ctx context.Context, req Request) (*Completion, error)
	// Stream 流式生成，每个增量调用一次 onDelta；onDelta 返回错误时中止并返回已生成部分
	Stream(ctx context.Context, req Request, onDelta func(delta string) error) (*Completion, error)
	// Model 返回模型名称
	Model() string
	// Provider 返回提供商名称
	Provider() string
}

// Message 聊天消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request 生成请求
type Request struct {
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stop        []string  `json:"stop,omitempty"`
}

// Usage token 用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion 生成结果
type Completion struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	Usage        Usage  `json:"usage"`
	FinishReason string `json:"finish_reason"`
}

func (r Request) maxTokens() int {
	if r.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return r.MaxTokens
}

// NewClient 按 provider 配置创建客户端；driver 为 eino 时走 eino-ext ChatModel，否则走 HTTP 直连
func NewClient(ctx context.Context, provider string, pc config.ProviderConfig, modelName string) (Client, error) {
	switch strings.ToLower(pc.Driver) {
	case "", "http":
		return NewOpenAIClient(provider, modelName, pc.APIKey, pc.BaseURL), nil
	case "eino":
		return NewEinoOpenAIClient(ctx, provider, modelName, pc.APIKey, pc.BaseURL)
	default:
		return nil, fmt.Errorf("不支持的 LLM driver: %s", pc.Driver)
	}
}
