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

// Package currency 汇率查询与换算：外部 API + 缓存 + 静态兜底
package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-resty/resty/v2"

	"house-ai/internal/storage/cache"
	"house-ai/pkg/config"
	herrors "house-ai/pkg/errors"
	"house-ai/pkg/log"
	"house-ai/pkg/metrics"
)

const (
	defaultBaseURL  = "https://api.exchangerate-api.com/v4"
	defaultCacheTTL = 48 * time.Hour
)

// 外部 API 不可用时的近似汇率
var fallbackRates = map[string]float64{
	"USD:UZS": 12500,
	"EUR:UZS": 13500,
	"USD:EUR": 0.92,
	"EUR:USD": 1.09,
	"UZS:USD": 0.00008,
	"UZS:EUR": 0.000074,
}

// FallbackRate 静态兜底汇率；同币种为 1，未知币对为 1
func FallbackRate(from, to string) float64 {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return 1
	}
	if r, ok := fallbackRates[from+":"+to]; ok {
		return r
	}
	return 1
}

// Service 汇率服务
type Service struct {
	baseURL string
	ttl     time.Duration
	cache   cache.Store
	client  *resty.Client
	logger  *log.Logger
}

// NewService store 可为 nil（不缓存）
func NewService(cfg config.CurrencyConfig, store cache.Store, logger *log.Logger) *Service {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	if logger == nil {
		logger = log.Nop()
	}
	client := resty.New()
	client.SetTimeout(10 * time.Second)
	return &Service{
		baseURL: strings.TrimRight(base, "/"),
		ttl:     config.ParseDuration(cfg.CacheTTL, defaultCacheTTL),
		cache:   store,
		client:  client,
		logger:  logger,
	}
}

// Rate 先查缓存，再请求外部 API，都失败时使用静态汇率
func (s *Service) Rate(ctx context.Context, from, to string) float64 {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return 1
	}
	if s.cache != nil {
		var cached float64
		err := s.cache.Get(ctx, cache.CurrencyKey(from, to), &cached)
		switch {
		case err == nil && cached > 0:
			metrics.CacheRequestsTotal.WithLabelValues("currency", "hit").Inc()
			return cached
		case err != nil && !errors.Is(err, cache.ErrMiss):
			s.logger.WarnContext(ctx, "读取汇率缓存失败", "error", err)
		}
		metrics.CacheRequestsTotal.WithLabelValues("currency", "miss").Inc()
	}
	rate, err := s.Refresh(ctx, from, to)
	if err != nil {
		s.logger.WarnContext(ctx, "汇率接口不可用，使用静态汇率", "from", from, "to", to, "error", err)
		return FallbackRate(from, to)
	}
	return rate
}

// Refresh 请求外部 API 并写入缓存
func (s *Service) Refresh(ctx context.Context, from, to string) (float64, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	rate, err := s.fetch(ctx, from, to)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.CurrencyKey(from, to), rate, s.ttl); err != nil {
			s.logger.WarnContext(ctx, "写入汇率缓存失败", "error", err)
		}
	}
	return rate, nil
}

type latestResponse struct {
	Rates map[string]float64 `json:"rates"`
}

func (s *Service) fetch(ctx context.Context, from, to string) (float64, error) {
	resp, err := s.client.R().SetContext(ctx).Get(s.baseURL + "/latest/" + from)
	if err != nil {
		return 0, herrors.Wrapf(herrors.ErrUnavailable, "汇率请求失败: %v", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, herrors.Wrapf(herrors.ErrUnavailable, "汇率接口返回 %d", resp.StatusCode())
	}
	var body latestResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return 0, fmt.Errorf("解析汇率响应失败: %w", err)
	}
	rate, ok := body.Rates[to]
	if !ok || rate <= 0 {
		return 0, herrors.Wrapf(herrors.ErrNotFound, "汇率 %s/%s", from, to)
	}
	return rate, nil
}

// Convert 换算并保留两位小数
func (s *Service) Convert(ctx context.Context, amount float64, from, to string) float64 {
	return round2(amount * s.Rate(ctx, from, to))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatPrice UZS 不带小数，USD/EUR 带符号与两位小数
func FormatPrice(v float64, currency string) string {
	switch cur := strings.ToUpper(currency); cur {
	case "UZS":
		return humanize.FormatFloat("#,###.", v) + " UZS"
	case "USD":
		return "$" + humanize.FormatFloat("#,###.##", v)
	case "EUR":
		return "€" + humanize.FormatFloat("#,###.##", v)
	default:
		return humanize.FormatFloat("#,###.##", v) + " " + cur
	}
}
