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

// Package secrets 解析 Provider API Key 等敏感配置，支持 env / memory / vault。
package secrets

import (
	"context"
	"fmt"
	"strings"

	"house-ai/pkg/config"
)

// RefPrefix 配置值以该前缀开头时，剩余部分作为 secret key 从 Store 读取
const RefPrefix = "secret:"

type Store interface {
	// Get 获取 secret 值
	Get(ctx context.Context, key string) (string, error)

	// Set 设置 secret 值
	Set(ctx context.Context, key string, value string) error

	// Delete 删除 secret
	Delete(ctx context.Context, key string) error

	// List 列出所有 secret keys
	List(ctx context.Context, prefix string) ([]string, error)
}

// NewStore 根据 secrets 配置创建 Store，provider 为空时使用 env
func NewStore(cfg config.SecretsConfig) (Store, error) {
	switch cfg.Provider {
	case "", "env":
		return NewEnvStore(), nil
	case "memory":
		return NewMemoryStore(nil), nil
	case "vault":
		return NewVaultStore(VaultConfig{
			Address:    cfg.Address,
			Token:      cfg.Token,
			PathPrefix: cfg.PathPrefix,
		})
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", cfg.Provider)
	}
}

// Resolve 若 value 为 "secret:<key>" 引用则从 store 读取，否则原样返回
func Resolve(ctx context.Context, store Store, value string) (string, error) {
	if !strings.HasPrefix(value, RefPrefix) {
		return value, nil
	}
	if store == nil {
		return "", fmt.Errorf("secret reference %q but no secret store configured", value)
	}
	key := strings.TrimPrefix(value, RefPrefix)
	v, err := store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("resolve secret %q: %w", key, err)
	}
	return v, nil
}

// ResolveProviders 就地解析所有 LLM / Embedding Provider 的 api_key 与搜索 api_key
func ResolveProviders(ctx context.Context, store Store, cfg *config.Config) error {
	if cfg == nil {
		return nil
	}
	for _, providers := range []map[string]config.ProviderConfig{cfg.Model.LLM.Providers, cfg.Model.Embedding.Providers} {
		for name, pc := range providers {
			key, err := Resolve(ctx, store, pc.APIKey)
			if err != nil {
				return fmt.Errorf("provider %s: %w", name, err)
			}
			pc.APIKey = key
			providers[name] = pc
		}
	}
	key, err := Resolve(ctx, store, cfg.Search.APIKey)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	cfg.Search.APIKey = key
	return nil
}
