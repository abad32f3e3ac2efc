package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	herrors "house-ai/pkg/errors"
)

const braveURL = "https://api.search.brave.com/res/v1/web/search"

// Brave Brave Search API
type Brave struct {
	apiKey string
	url    string
	client *resty.Client
}

// NewBrave url 为空时使用官方地址
func NewBrave(apiKey, url string, timeout time.Duration) *Brave {
	if url == "" {
		url = braveURL
	}
	return &Brave{apiKey: apiKey, url: url, client: newRestyClient(timeout)}
}

// Name 返回 brave
func (b *Brave) Name() string { return "brave" }

type braveResponse struct {
	Web struct {
		Results []Result `json:"results"`
	} `json:"web"`
}

// Search GET 查询，鉴权头为 X-Subscription-Token
func (b *Brave) Search(ctx context.Context, query string, count int) ([]Result, error) {
	if count <= 0 {
		count = DefaultCount
	}
	resp, err := b.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"q": query, "count": strconv.Itoa(count)}).
		SetHeader("Accept", "application/json").
		SetHeader("X-Subscription-Token", b.apiKey).
		Get(b.url)
	if err != nil {
		return nil, herrors.Wrapf(herrors.ErrUnavailable, "brave 请求失败: %v", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, herrors.Wrapf(herrors.ErrUnavailable, "brave 返回 %d", resp.StatusCode())
	}
	var body braveResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("解析 brave 响应失败: %w", err)
	}
	results := body.Web.Results
	if len(results) > count {
		results = results[:count]
	}
	return results, nil
}
