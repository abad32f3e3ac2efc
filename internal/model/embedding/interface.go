package embedding

import (
	"context"

	einoembed "github.com/cloudwego/eino/components/embedding"
)

// Embedder 向量化接口，输出维度固定
type Embedder interface {
	// Embed 返回与 texts 一一对应的向量
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	// Dimension 向量维度
	Dimension() int
	// Model 模型名称
	Model() string
}

// EinoAdapter 让 Embedder 满足 eino 的 embedding.Embedder，供 indexer / retriever 使用
type EinoAdapter struct {
	Embedder Embedder
}

var _ einoembed.Embedder = (*EinoAdapter)(nil)

// EmbedStrings 实现 eino embedding.Embedder
func (a *EinoAdapter) EmbedStrings(ctx context.Context, texts []string, opts ...einoembed.Option) ([][]float64, error) {
	return a.Embedder.Embed(ctx, texts)
}
