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

// Package middleware HTTP 中间件：恢复与错误映射、请求日志、CORS、可选 JWT 身份、按客户端限流
package middleware

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/middlewares/server/recovery"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"house-ai/pkg/auth"
	"house-ai/pkg/config"
	"house-ai/pkg/log"
)

// 请求/响应头
const (
	HeaderRequestID    = "X-Request-ID"
	HeaderResponseTime = "X-Response-Time"
)

// ErrorBody 统一错误响应
type ErrorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// Middleware 中间件集合
type Middleware struct {
	cfg     config.APIConfig
	logger  *log.Logger
	limiter *RateLimiter
}

// NewMiddleware 按 api 配置创建
func NewMiddleware(cfg config.APIConfig, logger *log.Logger) *Middleware {
	if logger == nil {
		logger = log.Nop()
	}
	m := &Middleware{cfg: cfg, logger: logger}
	if cfg.Middleware.RateLimit {
		m.limiter = NewRateLimiter(cfg.Middleware.RateLimitPerMinute, cfg.Middleware.AnonRateLimitPerMinute)
	}
	return m
}

// Recovery 捕获 panic，返回 500 JSON
func (m *Middleware) Recovery() app.HandlerFunc {
	return recovery.Recovery(recovery.WithRecoveryHandler(func(ctx context.Context, c *app.RequestContext, err interface{}, stack []byte) {
		m.logger.ErrorContext(ctx, "请求处理 panic",
			"path", string(c.Path()), "request_id", auth.GetRequestID(ctx), "panic", err, "stack", string(stack))
		c.AbortWithStatusJSON(consts.StatusInternalServerError, ErrorBody{Error: "internal server error"})
	}))
}

// RequestLog 注入请求 ID，记录耗时并写回 X-Request-ID / X-Response-Time
func (m *Middleware) RequestLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		id := string(c.Request.Header.Peek(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		ctx = auth.WithRequestID(ctx, id)
		c.Header(HeaderRequestID, id)

		c.Next(ctx)

		elapsed := time.Since(start)
		c.Header(HeaderResponseTime, fmt.Sprintf("%.3fms", float64(elapsed.Microseconds())/1000))
		m.logger.InfoContext(ctx, "http request",
			"request_id", id,
			"method", string(c.Method()),
			"path", string(c.Path()),
			"status", c.Response.StatusCode(),
			"client_ip", c.ClientIP(),
			"duration_ms", elapsed.Milliseconds(),
		)
	}
}

// CORS api.cors.enable 为 false 时为空操作
func (m *Middleware) CORS() app.HandlerFunc {
	origins := m.cfg.CORS.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	allowAll := len(origins) == 1 && origins[0] == "*"
	return func(ctx context.Context, c *app.RequestContext) {
		if !m.cfg.CORS.Enable {
			c.Next(ctx)
			return
		}
		origin := string(c.Request.Header.Peek("Origin"))
		switch {
		case allowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && containsFold(origins, origin):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID, X-Response-Time, X-RateLimit-Limit, X-RateLimit-Remaining, Retry-After")
		c.Header("Access-Control-Max-Age", "86400")
		if string(c.Method()) == consts.MethodOptions {
			c.AbortWithStatus(consts.StatusNoContent)
			return
		}
		c.Next(ctx)
	}
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// RateLimit 按客户端限流；未启用或健康检查、指标路径直接放行
func (m *Middleware) RateLimit() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		path := string(c.Path())
		if m.limiter == nil || path == "/health" || path == "/metrics" {
			c.Next(ctx)
			return
		}
		key, authenticated := "ip:"+c.ClientIP(), auth.IsAuthenticated(ctx)
		if authenticated {
			key = "user:" + auth.GetUserID(ctx)
		}
		d := m.limiter.Allow(key, authenticated)
		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
			c.AbortWithStatusJSON(consts.StatusTooManyRequests, ErrorBody{
				Error:  "rate limit exceeded",
				Detail: fmt.Sprintf("limit %d requests per minute", d.Limit),
			})
			return
		}
		c.Next(ctx)
	}
}

// Decision 一次限流判定
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter 每个客户端一个令牌桶（每分钟 N 次，突发 N）
type RateLimiter struct {
	authPerMin int
	anonPerMin int

	mu      sync.Mutex
	clients map[string]*clientBucket
}

type clientBucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

const (
	maxTrackedClients = 10000
	clientIdleTTL     = 10 * time.Minute
)

// NewRateLimiter <=0 时使用 30 / 10
func NewRateLimiter(authPerMin, anonPerMin int) *RateLimiter {
	if authPerMin <= 0 {
		authPerMin = 30
	}
	if anonPerMin <= 0 {
		anonPerMin = 10
	}
	return &RateLimiter{authPerMin: authPerMin, anonPerMin: anonPerMin, clients: make(map[string]*clientBucket)}
}

// Allow 消耗一个令牌
func (l *RateLimiter) Allow(key string, authenticated bool) Decision {
	limit := l.anonPerMin
	if authenticated {
		limit = l.authPerMin
	}
	now := time.Now()

	l.mu.Lock()
	b, ok := l.clients[key]
	if !ok {
		if len(l.clients) >= maxTrackedClients {
			l.sweep(now)
		}
		b = &clientBucket{limiter: rate.NewLimiter(rate.Limit(float64(limit)/60), limit)}
		l.clients[key] = b
	}
	b.seen = now
	l.mu.Unlock()

	if b.limiter.AllowN(now, 1) {
		return Decision{Allowed: true, Limit: limit, Remaining: int(math.Max(0, math.Floor(b.limiter.TokensAt(now))))}
	}
	r := b.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return Decision{Limit: limit, RetryAfter: delay}
}

// sweep 清理长时间未出现的客户端；调用方持锁
func (l *RateLimiter) sweep(now time.Time) {
	for k, b := range l.clients {
		if now.Sub(b.seen) > clientIdleTTL {
			delete(l.clients, k)
		}
	}
}
