package einoext

import (
	"context"

	einoembed "github.com/cloudwego/eino/components/embedding"
)

// PrecomputedEmbedder 总是返回同一个已计算好的向量。
// 查询向量在 RAG 中只计算一次，再经 retriever.WithEmbedding 交给各分类检索器复用。
type PrecomputedEmbedder struct {
	Vector []float64
}

var _ einoembed.Embedder = (*PrecomputedEmbedder)(nil)

// EmbedStrings 为每条输入返回预计算向量
func (e *PrecomputedEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...einoembed.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = e.Vector
	}
	return out, nil
}
