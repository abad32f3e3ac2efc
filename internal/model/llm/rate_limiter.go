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

package llm

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"house-ai/pkg/config"
)

// DefaultLimit 未单独配置的 provider 使用的限流参数
var DefaultLimit = config.LLMRateLimitConfig{
	TokensPerMinute:   200000,
	RequestsPerMinute: 500,
	MaxConcurrent:     20,
}

// RateLimiter Provider 维度的限流器：请求速率 + token 速率 + 并发
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*providerLimiter
	defaults config.LLMRateLimitConfig
}

type providerLimiter struct {
	requests  *rate.Limiter
	tokens    *rate.Limiter
	semaphore chan struct{}
}

// NewRateLimiter 按 rate_limits.llm 配置创建限流器
func NewRateLimiter(configs map[string]config.LLMRateLimitConfig) *RateLimiter {
	l := &RateLimiter{
		limiters: make(map[string]*providerLimiter),
		defaults: DefaultLimit,
	}
	for provider, cfg := range configs {
		l.limiters[provider] = newProviderLimiter(cfg)
	}
	return l
}

func newProviderLimiter(cfg config.LLMRateLimitConfig) *providerLimiter {
	pl := &providerLimiter{}
	if cfg.RequestsPerMinute > 0 {
		// burst = 2 秒的配额
		burst := max(int(cfg.RequestsPerMinute/30), 1)
		pl.requests = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60.0), burst)
	}
	if cfg.TokensPerMinute > 0 {
		burst := max(cfg.TokensPerMinute/30, 1)
		pl.tokens = rate.NewLimiter(rate.Limit(float64(cfg.TokensPerMinute)/60.0), burst)
	}
	if cfg.MaxConcurrent > 0 {
		pl.semaphore = make(chan struct{}, cfg.MaxConcurrent)
	}
	return pl
}

func (l *RateLimiter) get(provider string) *providerLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	pl, ok := l.limiters[provider]
	if !ok {
		pl = newProviderLimiter(l.defaults)
		l.limiters[provider] = pl
	}
	return pl
}

// Wait 阻塞直到允许发起调用；成功后必须调用 Release
func (l *RateLimiter) Wait(ctx context.Context, provider string, estimatedTokens int) error {
	pl := l.get(provider)
	if pl.requests != nil {
		if err := pl.requests.Wait(ctx); err != nil {
			return fmt.Errorf("request rate limit wait failed: %w", err)
		}
	}
	if pl.tokens != nil && estimatedTokens > 0 {
		n := min(estimatedTokens, pl.tokens.Burst())
		if err := pl.tokens.WaitN(ctx, n); err != nil {
			return fmt.Errorf("token budget wait failed: %w", err)
		}
	}
	if pl.semaphore != nil {
		select {
		case pl.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Release 释放并发 slot
func (l *RateLimiter) Release(provider string) {
	pl := l.get(provider)
	if pl.semaphore == nil {
		return
	}
	select {
	case <-pl.semaphore:
	default:
	}
}

// InFlight 当前占用的并发 slot 数
func (l *RateLimiter) InFlight(provider string) int {
	pl := l.get(provider)
	if pl.semaphore == nil {
		return 0
	}
	return len(pl.semaphore)
}
