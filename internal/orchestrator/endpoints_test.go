package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"house-ai/internal/storage/cache"
	"house-ai/pkg/auth"
	herrors "house-ai/pkg/errors"
)

func TestRecommendEndpointCached(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, stubEmbedder{}, "Top picks for you.")
	maxPrice := 12_000_000.0

	first, err := h.orch.Recommend(ctx, RecommendRequest{Query: "Best phone", BudgetMax: &maxPrice})
	require.NoError(t, err)
	require.Len(t, first.Products, 1)
	assert.Equal(t, "Galaxy S24", first.Products[0].Name)
	assert.Equal(t, 1, h.model.CallCount())

	second, err := h.orch.Recommend(ctx, RecommendRequest{Query: "  best PHONE ", SessionID: "s2"})
	require.NoError(t, err)
	assert.Equal(t, first.Message, second.Message)
	assert.Equal(t, "s2", second.SessionID)
	assert.Equal(t, 1, h.model.CallCount())
}

func TestRecommendEndpointValidation(t *testing.T) {
	h := newHarness(t, stubEmbedder{}, "never")
	_, err := h.orch.Recommend(context.Background(), RecommendRequest{Query: "  "})
	assert.True(t, errors.Is(err, herrors.ErrInvalidArg))
}

func TestCompareEndpointCacheSymmetric(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, stubEmbedder{}, "Pick the Galaxy.")

	first, err := h.orch.Compare(ctx, CompareRequest{ProductNames: []string{"Galaxy S24", "iPhone 15"}})
	require.NoError(t, err)
	require.NotNil(t, first.Comparison)

	second, err := h.orch.Compare(ctx, CompareRequest{ProductNames: []string{" iphone 15", "GALAXY S24"}})
	require.NoError(t, err)
	assert.Equal(t, first.Message, second.Message)
	assert.Equal(t, 1, h.model.CallCount())

	var cached CompareResponse
	require.NoError(t, h.cache.Get(ctx, cache.CompareKey([]string{"iPhone 15", "Galaxy S24"}), &cached))
}

func TestCompareEndpointNotFoundNotCached(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, stubEmbedder{}, "never")

	resp, err := h.orch.Compare(ctx, CompareRequest{ProductNames: []string{"Galaxy S24", "Nokia 3310"}})
	require.NoError(t, err)
	assert.Nil(t, resp.Comparison)
	assert.Contains(t, resp.Message, "Nokia 3310")

	var cached CompareResponse
	assert.ErrorIs(t, h.cache.Get(ctx, cache.CompareKey([]string{"Galaxy S24", "Nokia 3310"}), &cached), cache.ErrMiss)
}

func TestCompareEndpointBudget(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, stubEmbedder{}, "never")
	_, err := h.cache.IncrBy(ctx, cache.TokenKey("u1"), 100000)
	require.NoError(t, err)

	_, err = h.orch.Compare(auth.WithUserID(ctx, "u1"), CompareRequest{ProductNames: []string{"Galaxy S24", "iPhone 15"}})
	var be *BudgetError
	require.ErrorAs(t, err, &be)
	assert.ErrorIs(t, err, herrors.ErrBudgetExceeded)
	assert.Zero(t, h.model.CallCount())
}

func TestCreateSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, stubEmbedder{}, "never")

	anon, err := h.orch.CreateSession(ctx, SessionRequest{AnonymousSessionID: "client-123"})
	require.NoError(t, err)
	assert.Equal(t, "client-123", anon.ID)

	again, err := h.orch.CreateSession(ctx, SessionRequest{AnonymousSessionID: "client-123"})
	require.NoError(t, err)
	assert.Equal(t, anon.CreatedAt, again.CreatedAt)

	user, err := h.orch.CreateSession(ctx, SessionRequest{UserID: "u9"})
	require.NoError(t, err)
	assert.Equal(t, "u9", user.UserID)
	assert.NotEmpty(t, user.ID)
}
