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
	"strconv"

	einoindexer "github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/schema"

	"house-ai/internal/storage/vector"
)

// MemoryIndexer 基于 vector.Store 的 Eino indexer.Indexer
type MemoryIndexer struct {
	store     vector.Store
	index     string
	batchSize int
}

// MemoryIndexerConfig MemoryIndexer 构造参数
type MemoryIndexerConfig struct {
	Store     vector.Store
	Index     string
	BatchSize int
}

// NewMemoryIndexer 创建基于 vector.Store 的 Eino Indexer
func NewMemoryIndexer(cfg *MemoryIndexerConfig) (*MemoryIndexer, error) {
	if cfg == nil || cfg.Store == nil {
		return nil, errors.New("MemoryIndexer 需要 vector store")
	}
	if cfg.Index == "" {
		return nil, errors.New("MemoryIndexer 需要索引名")
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &MemoryIndexer{store: cfg.Store, index: cfg.Index, batchSize: batchSize}, nil
}

// Store 实现 indexer.Indexer；无向量的文档用 WithEmbedding 补齐
func (m *MemoryIndexer) Store(ctx context.Context, docs []*schema.Document, opts ...einoindexer.Option) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	options := einoindexer.GetCommonOptions(nil, opts...)
	indexName := m.index
	if options != nil && len(options.SubIndexes) > 0 && options.SubIndexes[0] != "" {
		indexName = options.SubIndexes[0]
	}

	if options != nil && options.Embedding != nil {
		var (
			pending []*schema.Document
			texts   []string
		)
		for _, doc := range docs {
			if doc != nil && len(doc.DenseVector()) == 0 && doc.Content != "" {
				pending = append(pending, doc)
				texts = append(texts, doc.Content)
			}
		}
		if len(texts) > 0 {
			vecs, err := options.Embedding.EmbedStrings(ctx, texts)
			if err != nil {
				return nil, fmt.Errorf("indexer embedding: %w", err)
			}
			if len(vecs) != len(pending) {
				return nil, fmt.Errorf("indexer embedding: got %d vectors for %d docs", len(vecs), len(pending))
			}
			for i, doc := range pending {
				doc.WithDenseVector(vecs[i])
			}
		}
	}

	ids := make([]string, 0, len(docs))
	for start := 0; start < len(docs); start += m.batchSize {
		end := min(start+m.batchSize, len(docs))
		batch := make([]*vector.Vector, 0, end-start)
		for _, doc := range docs[start:end] {
			if doc == nil {
				continue
			}
			vec := doc.DenseVector()
			if len(vec) == 0 {
				return nil, fmt.Errorf("doc %s has no vector and no Embedding option", doc.ID)
			}
			meta := stringMetadata(doc.MetaData)
			meta[vector.MetadataContent] = doc.Content
			batch = append(batch, &vector.Vector{ID: doc.ID, Values: vec, Metadata: meta})
			ids = append(ids, doc.ID)
		}
		if err := m.store.Upsert(ctx, indexName, batch); err != nil {
			return nil, fmt.Errorf("vector upsert %s: %w", indexName, err)
		}
	}
	return ids, nil
}

// stringMetadata 保留可转为字符串的元数据值
func stringMetadata(meta map[string]any) map[string]string {
	out := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		switch val := v.(type) {
		case string:
			out[k] = val
		case fmt.Stringer:
			out[k] = val.String()
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case int, int64, bool:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}
