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

package model

import (
	"context"
	"fmt"
	"strings"

	"house-ai/internal/model/embedding"
	"house-ai/internal/model/llm"
	"house-ai/internal/router"
	"house-ai/pkg/config"
	"house-ai/pkg/log"
)

const defaultEmbeddingDimension = 1536

// Registry 按档位持有模型客户端；默认与高级档都带备用 Provider
type Registry struct {
	Default  llm.Client
	Advanced llm.Client
	Embedder embedding.Embedder
}

// Pick 按路由档位取客户端，高级档未配置时退回默认档
func (r *Registry) Pick(tier router.Tier) llm.Client {
	if tier == router.TierAdvanced && r.Advanced != nil {
		return r.Advanced
	}
	return r.Default
}

// NewRegistry 根据 model.defaults 创建各档位客户端，并按 rate_limits.llm 包装限流
func NewRegistry(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置为空")
	}
	if logger == nil {
		logger = log.Nop()
	}
	limiter := llm.NewRateLimiter(cfg.RateLimits.LLM)
	build := func(key string) (llm.Client, error) {
		if key == "" {
			return nil, nil
		}
		c, err := NewLLMClient(ctx, cfg.Model.LLM, key)
		if err != nil {
			return nil, err
		}
		return llm.NewRateLimitedClient(c, limiter), nil
	}

	primary, err := build(cfg.Model.Defaults.LLM)
	if err != nil {
		return nil, fmt.Errorf("默认模型: %w", err)
	}
	if primary == nil {
		return nil, fmt.Errorf("未配置 model.defaults.llm")
	}
	advanced, err := build(cfg.Model.Defaults.Advanced)
	if err != nil {
		return nil, fmt.Errorf("高级模型: %w", err)
	}
	fallback, err := build(cfg.Model.Defaults.Fallback)
	if err != nil {
		logger.Warn("备用模型不可用，仅使用主 Provider", "error", err)
		fallback = nil
	}

	reg := &Registry{Default: llm.NewFallbackClient(primary, fallback, logger)}
	if advanced != nil {
		reg.Advanced = llm.NewFallbackClient(advanced, fallback, logger)
	}
	if cfg.Model.Defaults.Embedding != "" {
		reg.Embedder, err = NewEmbedder(cfg.Model.Embedding, cfg.Model.Defaults.Embedding)
		if err != nil {
			return nil, fmt.Errorf("Embedding 模型: %w", err)
		}
	}
	return reg, nil
}

// NewLLMClient 按 "provider.model_key" 创建单个 LLM 客户端
func NewLLMClient(ctx context.Context, cfg config.LLMConfig, key string) (llm.Client, error) {
	provider, pc, mi, err := lookup(cfg.Providers, key)
	if err != nil {
		return nil, err
	}
	if pc.APIKey == "" {
		return nil, fmt.Errorf("LLM provider %q 的 api_key 未配置", provider)
	}
	return llm.NewClient(ctx, provider, pc, mi.Name)
}

// NewEmbedder 按 "provider.model_key" 创建 Embedder，维度缺省 1536
func NewEmbedder(cfg config.EmbeddingConfig, key string) (embedding.Embedder, error) {
	provider, pc, mi, err := lookup(cfg.Providers, key)
	if err != nil {
		return nil, err
	}
	if pc.APIKey == "" {
		return nil, fmt.Errorf("Embedding provider %q 的 api_key 未配置", provider)
	}
	dimension := mi.Dimension
	if dimension <= 0 {
		dimension = defaultEmbeddingDimension
	}
	return embedding.NewOpenAIEmbedder(pc.APIKey, mi.Name, pc.BaseURL, dimension), nil
}

func lookup(providers map[string]config.ProviderConfig, key string) (string, config.ProviderConfig, config.ModelInfo, error) {
	provider, modelKey, err := ParseDefaultKey(key)
	if err != nil {
		return "", config.ProviderConfig{}, config.ModelInfo{}, err
	}
	pc, ok := providers[provider]
	if !ok {
		return "", config.ProviderConfig{}, config.ModelInfo{}, fmt.Errorf("provider %q 未配置", provider)
	}
	mi, ok := pc.Models[modelKey]
	if !ok {
		return "", config.ProviderConfig{}, config.ModelInfo{}, fmt.Errorf("model %q 未在 provider %q 中配置", modelKey, provider)
	}
	return provider, pc, mi, nil
}

// ParseDefaultKey 拆分 "provider.model_key"
func ParseDefaultKey(key string) (provider, modelKey string, err error) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("default key 格式应为 provider.model_key，如 openai.gpt_4o_mini，当前: %q", key)
	}
	return parts[0], parts[1], nil
}
