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

// Package budget 按用户记录每日 token 用量并估算花费
package budget

import (
	"context"
	"errors"
	"math"
	"time"

	"house-ai/internal/classify"
	"house-ai/internal/storage/cache"
	"house-ai/pkg/log"
	"house-ai/pkg/metrics"
)

// Window 计数窗口，首次自增时设置
const Window = 24 * time.Hour

// DefaultDailyQuota 未配置时的每日 token 额度
const DefaultDailyQuota = 100000

// UsageRecord 一次用量记录的结果
type UsageRecord struct {
	Tracked          bool    `json:"tracked"`
	TokensUsed       int     `json:"tokens_used,omitempty"`
	DailyTotal       int64   `json:"daily_total,omitempty"`
	DailyBudget      int64   `json:"daily_budget,omitempty"`
	Remaining        int64   `json:"remaining,omitempty"`
	Model            string  `json:"model,omitempty"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd,omitempty"`
}

// Ledger 基于缓存原子计数器的每日额度账本
type Ledger struct {
	store  cache.Store
	quota  int64
	logger *log.Logger
}

// NewLedger quota<=0 时使用 DefaultDailyQuota
func NewLedger(store cache.Store, quota int, logger *log.Logger) *Ledger {
	if quota <= 0 {
		quota = DefaultDailyQuota
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Ledger{store: store, quota: int64(quota), logger: logger}
}

// Quota 每日额度
func (l *Ledger) Quota() int64 { return l.quota }

// Check 返回是否允许继续以及剩余额度；匿名用户不限额，缓存故障时放行
func (l *Ledger) Check(ctx context.Context, userID string) (bool, int64) {
	if userID == "" {
		return true, l.quota
	}
	var used int64
	err := l.store.Get(ctx, cache.TokenKey(userID), &used)
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		metrics.CacheRequestsTotal.WithLabelValues("budget", "error").Inc()
		l.logger.WarnContext(ctx, "读取 token 用量失败，放行请求", "user_id", userID, "error", err)
		return true, l.quota
	}
	remaining := l.quota - used
	if remaining < 0 {
		remaining = 0
	}
	if remaining == 0 {
		metrics.BudgetRejectionsTotal.Inc()
		l.logger.WarnContext(ctx, "token 额度已用尽", "user_id", userID, "used", used, "quota", l.quota)
	}
	return remaining > 0, remaining
}

// Track 累加用量；窗口内首次自增时设置 24h 过期
func (l *Ledger) Track(ctx context.Context, userID string, tokens int, model string) UsageRecord {
	if userID == "" || tokens <= 0 {
		return UsageRecord{Tracked: false}
	}
	key := cache.TokenKey(userID)
	total, err := l.store.IncrBy(ctx, key, int64(tokens))
	if err != nil {
		l.logger.WarnContext(ctx, "记录 token 用量失败", "user_id", userID, "tokens", tokens, "error", err)
		return UsageRecord{Tracked: false}
	}
	if ttl, err := l.store.TTL(ctx, key); err == nil && ttl == cache.TTLNoExpiry {
		if err := l.store.Expire(ctx, key, Window); err != nil {
			l.logger.WarnContext(ctx, "设置 token 计数过期失败", "key", key, "error", err)
		}
	}

	cost := EstimateCost(tokens, model)
	metrics.CostUSDTotal.WithLabelValues(model).Add(cost)
	remaining := l.quota - total
	if remaining < 0 {
		remaining = 0
	}
	l.logger.InfoContext(ctx, "token 用量",
		"user_id", userID, "used", tokens, "total", total, "quota", l.quota, "model", model)
	return UsageRecord{
		Tracked:          true,
		TokensUsed:       tokens,
		DailyTotal:       total,
		DailyBudget:      l.quota,
		Remaining:        remaining,
		Model:            model,
		EstimatedCostUSD: cost,
	}
}

type rate struct{ input, output float64 }

// 每百万 token 的美元单价
var rates = map[string]rate{
	"gpt-4o-mini":            {0.15, 0.60},
	"gpt-4o":                 {5.00, 15.00},
	"text-embedding-3-small": {0.02, 0},
}

// EstimateCost 按 60% 输入 / 40% 输出混合单价估算，保留 6 位小数；未知模型按 gpt-4o-mini 计
func EstimateCost(tokens int, model string) float64 {
	r, ok := rates[model]
	if !ok {
		r = rates["gpt-4o-mini"]
	}
	cost := float64(tokens) * (r.input*0.6 + r.output*0.4) / 1e6
	return math.Round(cost*1e6) / 1e6
}

// ExceededMessage 额度用尽提示
func ExceededMessage(lang classify.Language) string {
	return classify.Localized(lang,
		"⚠️ You've reached your daily usage limit. "+
			"Please try again tomorrow! Your limit resets every 24 hours.",
		"⚠️ Kunlik foydalanish limitingiz tugadi. "+
			"Iltimos, ertaga qayta urinib ko'ring! "+
			"Limitingiz har 24 soatda yangilanadi.",
		"⚠️ Вы достигли дневного лимита использования. "+
			"Пожалуйста, попробуйте завтра! "+
			"Ваш лимит обновляется каждые 24 часа.",
	)
}
