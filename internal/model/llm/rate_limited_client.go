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
	"time"

	"house-ai/pkg/metrics"
)

// RateLimitedClient 包装任意 Client，在真实调用前执行限流
type RateLimitedClient struct {
	inner   Client
	limiter *RateLimiter
}

// NewRateLimitedClient limiter 为 nil 时退化为直接调用
func NewRateLimitedClient(inner Client, limiter *RateLimiter) Client {
	if limiter == nil {
		return inner
	}
	return &RateLimitedClient{inner: inner, limiter: limiter}
}

func (c *RateLimitedClient) acquire(ctx context.Context, req Request) error {
	provider := c.inner.Provider()
	start := time.Now()
	if err := c.limiter.Wait(ctx, provider, MessagesTokens(req.Messages)+req.maxTokens()); err != nil {
		return err
	}
	if waited := time.Since(start); waited > 100*time.Millisecond {
		metrics.RateLimitWaitSeconds.WithLabelValues("llm", provider).Observe(waited.Seconds())
	}
	return nil
}

// Complete 实现 Client
func (c *RateLimitedClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	if err := c.acquire(ctx, req); err != nil {
		return nil, err
	}
	defer c.limiter.Release(c.inner.Provider())
	return c.inner.Complete(ctx, req)
}

// Stream 实现 Client；并发 slot 持有到流结束
func (c *RateLimitedClient) Stream(ctx context.Context, req Request, onDelta func(delta string) error) (*Completion, error) {
	if err := c.acquire(ctx, req); err != nil {
		return nil, err
	}
	defer c.limiter.Release(c.inner.Provider())
	return c.inner.Stream(ctx, req, onDelta)
}

// Model 返回底层模型名称
func (c *RateLimitedClient) Model() string { return c.inner.Model() }

// Provider 返回底层提供商名称
func (c *RateLimitedClient) Provider() string { return c.inner.Provider() }
