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

package einoext

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"house-ai/pkg/config"
)

// RedisOptionsFromVectorConfig 从 VectorConfig 构造 redis.Options（type=redis 时使用）
func RedisOptionsFromVectorConfig(cfg config.VectorConfig) *redis.Options {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
	}
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	if db, err := strconv.Atoi(cfg.DB); err == nil && db >= 0 {
		opts.DB = db
	}
	// Redis Stack FT.SEARCH 需 RESP2
	opts.Protocol = 2
	opts.UnstableResp3 = true
	return opts
}

// dialRedis 建立连接并 Ping
func dialRedis(ctx context.Context, cfg config.VectorConfig) (*redis.Client, error) {
	client := redis.NewClient(RedisOptionsFromVectorConfig(cfg))
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// keyPrefix redis 中某个索引的文档 key 前缀，如 house:products:
func keyPrefix(cfg config.VectorConfig, indexName string) string {
	coll := cfg.Collection
	if coll == "" {
		coll = "house"
	}
	return coll + ":" + indexName + ":"
}
