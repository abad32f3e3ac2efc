package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"house-ai/pkg/config"
)

func TestMemoryStore_UpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.EnsureIndex(ctx, "products", 2))
	require.NoError(t, s.Upsert(ctx, "products", []*Vector{
		{ID: "v1", Values: []float64{1, 0}, Metadata: map[string]string{MetadataContent: "a"}},
		{ID: "v2", Values: []float64{0, 1}},
		{ID: "v3", Values: []float64{1, 1}},
	}))

	results, err := s.Search(ctx, "products", []float64{1, 0}, &SearchOptions{TopK: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "v1", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, "v3", results[1].ID)
	assert.Equal(t, "a", results[0].Metadata[MetadataContent])
}

func TestMemoryStore_Threshold(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Upsert(ctx, "articles", []*Vector{
		{ID: "near", Values: []float64{1, 0.1}},
		{ID: "far", Values: []float64{0, 1}},
	}))
	results, err := s.Search(ctx, "articles", []float64{1, 0}, &SearchOptions{TopK: 3, Threshold: 0.75})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "near", results[0].ID)
}

func TestMemoryStore_UpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Upsert(ctx, "i", []*Vector{{ID: "v1", Values: []float64{1, 0}}}))
	require.NoError(t, s.Upsert(ctx, "i", []*Vector{{ID: "v1", Values: []float64{0, 1}}}))
	n, err := s.Count(ctx, "i")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := s.Search(ctx, "i", []float64{0, 1}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestMemoryStore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.EnsureIndex(ctx, "i", 2))
	assert.Error(t, s.EnsureIndex(ctx, "i", 3))
	assert.Error(t, s.Upsert(ctx, "i", []*Vector{{ID: "v1", Values: []float64{1, 0, 0}}}))
	_, err := s.Search(ctx, "i", []float64{1}, nil)
	assert.Error(t, err)
}

func TestMemoryStore_MissingIndexIsEmpty(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	results, err := s.Search(ctx, "missing", []float64{1}, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	n, err := s.Count(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryStore_Filter(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Upsert(ctx, "i", []*Vector{
		{ID: "a", Values: []float64{1, 0}, Metadata: map[string]string{"brand": "samsung"}},
		{ID: "b", Values: []float64{1, 0}, Metadata: map[string]string{"brand": "apple"}},
	}))
	results, err := s.Search(ctx, "i", []float64{1, 0}, &SearchOptions{TopK: 5, Filter: map[string]string{"brand": "apple"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestCosineSimilarity_ZeroVector(t *testing.T) {
	assert.Zero(t, cosineSimilarity([]float64{0, 0}, []float64{1, 0}))
}

func TestNewStore(t *testing.T) {
	s, err := NewStore(config.VectorConfig{})
	require.NoError(t, err)
	assert.NotNil(t, s)
	_, err = NewStore(config.VectorConfig{Type: "milvus"})
	assert.Error(t, err)
}
