package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	herrors "house-ai/pkg/errors"
)

const tavilyURL = "https://api.tavily.com/search"

// Tavily Tavily Search API
type Tavily struct {
	apiKey string
	url    string
	client *resty.Client
}

// NewTavily url 为空时使用官方地址
func NewTavily(apiKey, url string, timeout time.Duration) *Tavily {
	if url == "" {
		url = tavilyURL
	}
	return &Tavily{apiKey: apiKey, url: url, client: newRestyClient(timeout)}
}

// Name 返回 tavily
func (t *Tavily) Name() string { return "tavily" }

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search POST 查询，content 映射为 Description
func (t *Tavily) Search(ctx context.Context, query string, count int) ([]Result, error) {
	if count <= 0 {
		count = DefaultCount
	}
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"api_key":        t.apiKey,
			"query":          query,
			"search_depth":   "basic",
			"include_images": false,
			"max_results":    count,
		}).
		Post(t.url)
	if err != nil {
		return nil, herrors.Wrapf(herrors.ErrUnavailable, "tavily 请求失败: %v", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, herrors.Wrapf(herrors.ErrUnavailable, "tavily 返回 %d", resp.StatusCode())
	}
	var body tavilyResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("解析 tavily 响应失败: %w", err)
	}
	out := make([]Result, 0, len(body.Results))
	for _, r := range body.Results {
		out = append(out, Result{Title: r.Title, URL: r.URL, Description: r.Content})
	}
	return out, nil
}
