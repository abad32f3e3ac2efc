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
	"errors"
	"fmt"

	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"house-ai/internal/storage/vector"
)

// MemoryRetriever 基于 vector.Store 的 Eino retriever.Retriever，一个实例对应一个索引
type MemoryRetriever struct {
	store     vector.Store
	index     string
	topK      int
	threshold float64
}

// MemoryRetrieverConfig MemoryRetriever 构造参数
type MemoryRetrieverConfig struct {
	Store     vector.Store
	Index     string
	TopK      int
	Threshold float64
}

// NewMemoryRetriever 创建基于 vector.Store 的 Eino Retriever
func NewMemoryRetriever(cfg *MemoryRetrieverConfig) (*MemoryRetriever, error) {
	if cfg == nil || cfg.Store == nil {
		return nil, errors.New("MemoryRetriever requires vector store")
	}
	if cfg.Index == "" {
		return nil, errors.New("MemoryRetriever requires index name")
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	return &MemoryRetriever{
		store:     cfg.Store,
		index:     cfg.Index,
		topK:      topK,
		threshold: cfg.Threshold,
	}, nil
}

// Retrieve 实现 retriever.Retriever；查询向量由 WithEmbedding 提供
func (m *MemoryRetriever) Retrieve(ctx context.Context, query string, opts ...einoretriever.Option) ([]*schema.Document, error) {
	options := einoretriever.GetCommonOptions(nil, opts...)
	if options == nil {
		options = &einoretriever.Options{}
	}
	indexName := m.index
	if options.Index != nil && *options.Index != "" {
		indexName = *options.Index
	}
	topK := m.topK
	if options.TopK != nil && *options.TopK > 0 {
		topK = *options.TopK
	}
	threshold := m.threshold
	if options.ScoreThreshold != nil {
		threshold = *options.ScoreThreshold
	}
	if options.Embedding == nil {
		return nil, errors.New("retriever requires WithEmbedding")
	}

	vecs, err := options.Embedding.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("retriever embedding: %w", err)
	}
	if len(vecs) == 0 {
		return nil, errors.New("embedding returned empty")
	}

	results, err := m.store.Search(ctx, indexName, vecs[0], &vector.SearchOptions{
		TopK:      topK,
		Threshold: threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search %s: %w", indexName, err)
	}

	docs := make([]*schema.Document, 0, len(results))
	for _, r := range results {
		meta := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			if k == vector.MetadataContent {
				continue
			}
			meta[k] = v
		}
		d := &schema.Document{
			ID:       r.ID,
			Content:  r.Metadata[vector.MetadataContent],
			MetaData: meta,
		}
		d.WithScore(r.Score)
		docs = append(docs, d)
	}
	return docs, nil
}
