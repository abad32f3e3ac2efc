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

package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

const defaultTopK = 3

// MemoryStore 内存向量存储实现（余弦相似度，暴力检索）
type MemoryStore struct {
	indexes map[string]*index
	mu      sync.RWMutex
}

type index struct {
	dimension int
	vectors   map[string]*Vector
	order     []string
}

// NewMemoryStore 创建新的内存向量存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		indexes: make(map[string]*index),
	}
}

func (s *MemoryStore) EnsureIndex(ctx context.Context, name string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("index %s: invalid dimension %d", name, dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indexes[name]; ok {
		if idx.dimension != dimension {
			return fmt.Errorf("index %s has dimension %d, requested %d", name, idx.dimension, dimension)
		}
		return nil
	}
	s.indexes[name] = &index{dimension: dimension, vectors: make(map[string]*Vector)}
	return nil
}

func (s *MemoryStore) Upsert(ctx context.Context, indexName string, vectors []*Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexes[indexName]
	if !ok {
		idx = &index{dimension: len(vectors[0].Values), vectors: make(map[string]*Vector)}
		s.indexes[indexName] = idx
	}
	for _, v := range vectors {
		if v.ID == "" {
			return fmt.Errorf("index %s: vector id is required", indexName)
		}
		if len(v.Values) != idx.dimension {
			return fmt.Errorf("vector dimension %d does not match index dimension %d", len(v.Values), idx.dimension)
		}
	}
	for _, v := range vectors {
		if _, exists := idx.vectors[v.ID]; !exists {
			idx.order = append(idx.order, v.ID)
		}
		cp := *v
		idx.vectors[v.ID] = &cp
	}
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, indexName string, query []float64, options *SearchOptions) ([]*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indexes[indexName]
	if !ok {
		return nil, nil
	}
	if len(query) != idx.dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), idx.dimension)
	}
	if options == nil {
		options = &SearchOptions{}
	}
	topK := options.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	var results []*SearchResult
	for _, id := range idx.order {
		v := idx.vectors[id]
		if !matchFilter(v.Metadata, options.Filter) {
			continue
		}
		score := cosineSimilarity(query, v.Values)
		if score < options.Threshold {
			continue
		}
		results = append(results, &SearchResult{ID: id, Score: score, Metadata: v.Metadata})
	}
	// 稳定排序：同分按写入顺序
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *MemoryStore) Count(ctx context.Context, indexName string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[indexName]
	if !ok {
		return 0, nil
	}
	return len(idx.vectors), nil
}

func (s *MemoryStore) DeleteIndex(ctx context.Context, indexName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indexes, indexName)
	return nil
}

// Close 关闭存储连接
func (s *MemoryStore) Close() error {
	return nil
}

func matchFilter(meta, filter map[string]string) bool {
	for k, want := range filter {
		if meta[k] != want {
			return false
		}
	}
	return true
}

// cosineSimilarity 计算余弦相似度，零向量得 0
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
