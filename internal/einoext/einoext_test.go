package einoext

import (
	"context"
	"testing"

	einoembed "github.com/cloudwego/eino/components/embedding"
	einoindexer "github.com/cloudwego/eino/components/indexer"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"house-ai/internal/storage/vector"
	"house-ai/pkg/config"
)

// keywordEmbedder 按关键词生成二维向量，便于断言检索顺序
type keywordEmbedder struct{}

func (keywordEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...einoembed.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		switch {
		case len(t) > 0 && t[0] == 'g':
			out[i] = []float64{1, 0}
		default:
			out[i] = []float64{0, 1}
		}
	}
	return out, nil
}

func TestMemoryIndexerAndRetriever(t *testing.T) {
	ctx := context.Background()
	store := vector.NewMemoryStore()
	cfg := config.VectorConfig{Type: "memory"}

	idx, err := NewIndexer(ctx, cfg, store, "products", nil)
	require.NoError(t, err)
	ids, err := idx.Store(ctx, []*schema.Document{
		{ID: "p1", Content: "gaming phone", MetaData: map[string]any{"name": "ROG Phone 8", "price": 9_500_000.0}},
		{ID: "p2", Content: "camera phone", MetaData: map[string]any{"name": "Pixel 8"}},
	}, einoindexer.WithEmbedding(keywordEmbedder{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ids)

	ret, err := NewRetriever(ctx, cfg, store, RetrieverOptions{Index: "products", TopK: 3, Threshold: 0.75})
	require.NoError(t, err)

	docs, err := ret.Retrieve(ctx, "best gaming",
		einoretriever.WithEmbedding(&PrecomputedEmbedder{Vector: []float64{1, 0}}))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "p1", docs[0].ID)
	assert.Equal(t, "gaming phone", docs[0].Content)
	assert.Equal(t, "ROG Phone 8", docs[0].MetaData["name"])
	assert.Equal(t, "9500000", docs[0].MetaData["price"])
	assert.InDelta(t, 1.0, docs[0].Score(), 1e-9)
}

func TestMemoryRetriever_RequiresEmbedding(t *testing.T) {
	ret, err := NewMemoryRetriever(&MemoryRetrieverConfig{Store: vector.NewMemoryStore(), Index: "articles"})
	require.NoError(t, err)
	_, err = ret.Retrieve(context.Background(), "q")
	assert.Error(t, err)
}

func TestMemoryIndexer_NoVector(t *testing.T) {
	idx, err := NewMemoryIndexer(&MemoryIndexerConfig{Store: vector.NewMemoryStore(), Index: "articles"})
	require.NoError(t, err)
	_, err = idx.Store(context.Background(), []*schema.Document{{ID: "a", Content: "x"}})
	assert.Error(t, err)
}

func TestMemoryIndexer_SubIndexOverride(t *testing.T) {
	ctx := context.Background()
	store := vector.NewMemoryStore()
	idx, err := NewMemoryIndexer(&MemoryIndexerConfig{Store: store, Index: "products"})
	require.NoError(t, err)
	doc := &schema.Document{ID: "a1", Content: "review"}
	doc.WithDenseVector([]float64{0.5, 0.5})
	_, err = idx.Store(ctx, []*schema.Document{doc}, einoindexer.WithSubIndexes([]string{"articles"}))
	require.NoError(t, err)

	n, err := store.Count(ctx, "articles")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPrecomputedEmbedder(t *testing.T) {
	e := &PrecomputedEmbedder{Vector: []float64{0.1, 0.2}}
	vecs, err := e.EmbedStrings(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.1, 0.2}, {0.1, 0.2}}, vecs)
}

func TestRedisOptionsFromVectorConfig(t *testing.T) {
	opts := RedisOptionsFromVectorConfig(config.VectorConfig{DB: "2", Password: "p"})
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 2, opts.Protocol)
	assert.Equal(t, "house:products:", keyPrefix(config.VectorConfig{}, "products"))
}

func TestUnsupportedVectorType(t *testing.T) {
	_, err := NewRetriever(context.Background(), config.VectorConfig{Type: "faiss"}, nil, RetrieverOptions{Index: "x"})
	assert.Error(t, err)
	_, err = NewIndexer(context.Background(), config.VectorConfig{Type: "faiss"}, nil, "x", nil)
	assert.Error(t, err)
}

func TestRedisRetrieverConfig(t *testing.T) {
	rc := redisRetrieverConfig(nil, RetrieverOptions{
		Index:        "products",
		TopK:         3,
		Threshold:    0.75,
		ReturnFields: []string{"name", "price", "content", ""},
	})
	require.NotNil(t, rc.DistanceThreshold)
	assert.InDelta(t, 0.25, *rc.DistanceThreshold, 1e-9)
	assert.Equal(t, []string{"content", "distance", "name", "price"}, rc.ReturnFields)
	assert.NotNil(t, rc.DocumentConverter)

	knn := redisRetrieverConfig(nil, RetrieverOptions{Index: "articles", TopK: 3})
	assert.Nil(t, knn.DistanceThreshold)
}

func TestDocumentFromRedis(t *testing.T) {
	doc, err := documentFromRedis(context.Background(), redis.Document{
		ID:     "house:products:p1",
		Fields: map[string]string{"content": "gaming phone", "distance": "0.125", "name": "ROG Phone 8"},
	})
	require.NoError(t, err)
	assert.Equal(t, "gaming phone", doc.Content)
	assert.InDelta(t, 0.875, doc.Score(), 1e-9)
	assert.Equal(t, "ROG Phone 8", doc.MetaData["name"])
	assert.NotContains(t, doc.MetaData, "distance")

	_, err = documentFromRedis(context.Background(), redis.Document{Fields: map[string]string{"distance": "far"}})
	assert.Error(t, err)
}
