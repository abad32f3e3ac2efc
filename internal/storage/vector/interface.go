package vector

import (
	"context"
)

// Store 向量存储接口：按索引（products / articles）分区的相似度检索
type Store interface {
	// EnsureIndex 索引不存在时以给定维度创建，已存在时校验维度
	EnsureIndex(ctx context.Context, name string, dimension int) error
	// Upsert 写入向量，ID 相同则覆盖；索引不存在时按首个向量维度创建
	Upsert(ctx context.Context, indexName string, vectors []*Vector) error
	// Search 返回得分不低于阈值的前 TopK 条，按得分降序；索引不存在时返回空
	Search(ctx context.Context, indexName string, query []float64, options *SearchOptions) ([]*SearchResult, error)
	// Count 索引内向量数
	Count(ctx context.Context, indexName string) (int, error)
	// DeleteIndex 删除索引
	DeleteIndex(ctx context.Context, indexName string) error
	// Close 关闭存储连接
	Close() error
}

// Vector 向量数据
type Vector struct {
	ID       string            `json:"id"`
	Values   []float64         `json:"values"`
	Metadata map[string]string `json:"metadata"` // content 字段保存原文
}

// SearchOptions 搜索选项
type SearchOptions struct {
	TopK      int               `json:"top_k"`
	Threshold float64           `json:"threshold"` // 余弦相似度下限
	Filter    map[string]string `json:"filter"`    // 元数据精确匹配
}

// SearchResult 搜索结果
type SearchResult struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}

// MetadataContent 原文在元数据中的键
const MetadataContent = "content"
