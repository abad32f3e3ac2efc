// Package search Web 搜索：Tavily / Brave，作为 RAG 的兜底上下文来源
package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"house-ai/pkg/config"
)

// DefaultCount 默认返回条数
const DefaultCount = 5

// Result 一条搜索结果
type Result struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Provider Web 搜索提供方
type Provider interface {
	Search(ctx context.Context, query string, count int) ([]Result, error)
	Name() string
}

// NewProvider 按配置创建；provider 为 none 或未配置 api_key 时返回 Noop
func NewProvider(cfg config.SearchConfig) (Provider, error) {
	timeout := config.ParseDuration(cfg.Timeout, 10*time.Second)
	provider := strings.ToLower(cfg.Provider)
	if provider == "none" || provider == "" || cfg.APIKey == "" {
		return Noop{}, nil
	}
	switch provider {
	case "tavily":
		return NewTavily(cfg.APIKey, cfg.BaseURL, timeout), nil
	case "brave":
		return NewBrave(cfg.APIKey, cfg.BaseURL, timeout), nil
	default:
		return nil, fmt.Errorf("不支持的搜索提供方: %s", cfg.Provider)
	}
}

func newRestyClient(timeout time.Duration) *resty.Client {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(1)
	client.SetRetryWaitTime(300 * time.Millisecond)
	return client
}

// Noop 未配置搜索时使用，始终返回空
type Noop struct{}

// Search 返回空结果
func (Noop) Search(context.Context, string, int) ([]Result, error) { return nil, nil }

// Name 返回 none
func (Noop) Name() string { return "none" }

// BuildContext 拼接为提示词上下文："Source i: title\ndesc\nURL: url"
func BuildContext(results []Result) string {
	if len(results) == 0 {
		return ""
	}
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = "Source " + strconv.Itoa(i+1) + ": " + r.Title + "\n" + r.Description + "\nURL: " + r.URL
	}
	return strings.Join(parts, "\n\n")
}

// Sources 提取非空 URL 作为引用来源
func Sources(results []Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		if r.URL != "" {
			out = append(out, r.URL)
		}
	}
	return out
}
