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
	"strings"

	redisindexer "github.com/cloudwego/eino-ext/components/indexer/redis"
	redisretriever "github.com/cloudwego/eino-ext/components/retriever/redis"
	einoembed "github.com/cloudwego/eino/components/embedding"
	einoindexer "github.com/cloudwego/eino/components/indexer"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"house-ai/internal/storage/vector"
	"house-ai/pkg/config"
)

const (
	defaultBatchSize = 100
	defaultTopK      = 3

	fieldContent  = "content"
	fieldDistance = redisretriever.SortByDistanceAttributeName
)

// RetrieverOptions 单个索引检索器的参数
type RetrieverOptions struct {
	Index     string
	TopK      int
	Threshold float64
	Embedder  einoembed.Embedder // redis 后端构造时需要；查询时可被 WithEmbedding 覆盖
	// ReturnFields redis 后端需要取回的元数据字段（content 与 distance 总会取回）
	ReturnFields []string
}

// NewRetriever 根据 VectorConfig 为一个索引创建 Eino Retriever（memory 用 vector.Store；redis 用 eino-ext）
func NewRetriever(ctx context.Context, cfg config.VectorConfig, store vector.Store, opts RetrieverOptions) (einoretriever.Retriever, error) {
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	switch cfg.Type {
	case "", "memory":
		return NewMemoryRetriever(&MemoryRetrieverConfig{
			Store:     store,
			Index:     opts.Index,
			TopK:      opts.TopK,
			Threshold: opts.Threshold,
		})
	case "redis":
		client, err := dialRedis(ctx, cfg)
		if err != nil {
			return nil, err
		}
		ret, err := redisretriever.NewRetriever(ctx, redisRetrieverConfig(client, opts))
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis retriever %s: %w", opts.Index, err)
		}
		return ret, nil
	default:
		return nil, fmt.Errorf("unsupported vector type: %s", cfg.Type)
	}
}

// redisRetrieverConfig redis 检索只支持距离阈值：余弦距离 = 1 - 相似度，Threshold > 0 时走 VECTOR_RANGE
func redisRetrieverConfig(client *redis.Client, opts RetrieverOptions) *redisretriever.RetrieverConfig {
	rc := &redisretriever.RetrieverConfig{
		Client:            client,
		Index:             opts.Index,
		TopK:              opts.TopK,
		Embedding:         opts.Embedder,
		ReturnFields:      returnFields(opts.ReturnFields),
		DocumentConverter: documentFromRedis,
	}
	if opts.Threshold > 0 {
		distance := 1 - opts.Threshold
		rc.DistanceThreshold = &distance
	}
	return rc
}

func returnFields(meta []string) []string {
	fields := []string{fieldContent, fieldDistance}
	for _, f := range meta {
		if f == fieldContent || f == fieldDistance || f == "" {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}

// documentFromRedis 将 FT.SEARCH 结果转为 Document；距离换算为相似度写入 Score，缺失的元数据字段直接跳过
func documentFromRedis(_ context.Context, raw redis.Document) (*schema.Document, error) {
	doc := &schema.Document{
		ID:       raw.ID,
		MetaData: map[string]any{},
	}
	for k, v := range raw.Fields {
		switch k {
		case fieldContent:
			doc.Content = v
		case fieldDistance:
			d, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("redis distance %q: %w", v, err)
			}
			doc.WithScore(1 - d)
		default:
			doc.MetaData[k] = v
		}
	}
	return doc, nil
}

// NewIndexer 根据 VectorConfig 为一个索引创建 Eino Indexer
func NewIndexer(ctx context.Context, cfg config.VectorConfig, store vector.Store, indexName string, embedder einoembed.Embedder) (einoindexer.Indexer, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryIndexer(&MemoryIndexerConfig{
			Store:     store,
			Index:     indexName,
			BatchSize: defaultBatchSize,
		})
	case "redis":
		client, err := dialRedis(ctx, cfg)
		if err != nil {
			return nil, err
		}
		idx, err := redisindexer.NewIndexer(ctx, &redisindexer.IndexerConfig{
			Client:    client,
			KeyPrefix: keyPrefix(cfg, indexName),
			BatchSize: defaultBatchSize,
			Embedding: embedder,
		})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis indexer %s: %w", indexName, err)
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported vector type: %s", cfg.Type)
	}
}
