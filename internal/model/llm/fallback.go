package llm

import (
	"context"

	"house-ai/pkg/log"
	"house-ai/pkg/metrics"
)

// FallbackClient 主 Provider 失败时透明切换到备用 Provider
type FallbackClient struct {
	primary  Client
	fallback Client
	logger   *log.Logger
}

// NewFallbackClient fallback 为 nil 时等同于 primary
func NewFallbackClient(primary, fallback Client, logger *log.Logger) *FallbackClient {
	if logger == nil {
		logger = log.Nop()
	}
	return &FallbackClient{primary: primary, fallback: fallback, logger: logger}
}

// Complete 先主后备
func (c *FallbackClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	out, err := c.primary.Complete(ctx, req)
	if err == nil || c.fallback == nil || ctx.Err() != nil {
		return out, err
	}
	metrics.LLMFallbackTotal.WithLabelValues("complete").Inc()
	c.logger.Warn("主模型调用失败，切换备用模型",
		"primary", c.primary.Model(), "fallback", c.fallback.Model(), "error", err)
	return c.fallback.Complete(ctx, req)
}

// Stream 仅当主 Provider 在输出首个增量前失败时才切换
func (c *FallbackClient) Stream(ctx context.Context, req Request, onDelta func(delta string) error) (*Completion, error) {
	emitted := false
	out, err := c.primary.Stream(ctx, req, func(delta string) error {
		emitted = true
		return onDelta(delta)
	})
	if err == nil || emitted || c.fallback == nil || ctx.Err() != nil {
		return out, err
	}
	metrics.LLMFallbackTotal.WithLabelValues("stream").Inc()
	c.logger.Warn("主模型流式调用失败，切换备用模型",
		"primary", c.primary.Model(), "fallback", c.fallback.Model(), "error", err)
	return c.fallback.Stream(ctx, req, onDelta)
}

// Model 返回主模型名称
func (c *FallbackClient) Model() string { return c.primary.Model() }

// Provider 返回主 Provider 名称
func (c *FallbackClient) Provider() string { return c.primary.Provider() }
