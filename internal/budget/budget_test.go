package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"house-ai/internal/classify"
	"house-ai/internal/storage/cache"
)

type brokenStore struct {
	cache.Store
}

func (brokenStore) Get(context.Context, string, interface{}) error {
	return errors.New("connection refused")
}

func (brokenStore) IncrBy(context.Context, string, int64) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestCheckAnonymous(t *testing.T) {
	l := NewLedger(cache.NewMemoryStore(), 1000, nil)
	ok, remaining := l.Check(context.Background(), "")
	assert.True(t, ok)
	assert.Equal(t, int64(1000), remaining)
}

func TestTrackAndCheck(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	l := NewLedger(store, 1000, nil)

	rec := l.Track(ctx, "u1", 400, "gpt-4o-mini")
	require.True(t, rec.Tracked)
	assert.Equal(t, int64(400), rec.DailyTotal)
	assert.Equal(t, int64(600), rec.Remaining)
	assert.Equal(t, int64(1000), rec.DailyBudget)

	ttl, err := store.TTL(ctx, cache.TokenKey("u1"))
	require.NoError(t, err)
	assert.Greater(t, ttl, 23*time.Hour)

	ok, remaining := l.Check(ctx, "u1")
	assert.True(t, ok)
	assert.Equal(t, int64(600), remaining)

	rec = l.Track(ctx, "u1", 700, "gpt-4o-mini")
	assert.Equal(t, int64(1100), rec.DailyTotal)
	assert.Equal(t, int64(0), rec.Remaining)

	ok, remaining = l.Check(ctx, "u1")
	assert.False(t, ok)
	assert.Equal(t, int64(0), remaining)
}

func TestTrackSkipsAnonymousAndZero(t *testing.T) {
	l := NewLedger(cache.NewMemoryStore(), 0, nil)
	assert.False(t, l.Track(context.Background(), "", 100, "gpt-4o").Tracked)
	assert.False(t, l.Track(context.Background(), "u", 0, "gpt-4o").Tracked)
	assert.Equal(t, int64(DefaultDailyQuota), l.Quota())
}

func TestFailOpen(t *testing.T) {
	l := NewLedger(brokenStore{}, 500, nil)
	ok, remaining := l.Check(context.Background(), "u1")
	assert.True(t, ok)
	assert.Equal(t, int64(500), remaining)
	assert.False(t, l.Track(context.Background(), "u1", 10, "gpt-4o").Tracked)
}

func TestEstimateCost(t *testing.T) {
	// 0.15*0.6 + 0.60*0.4 = 0.33 / 1M
	assert.InDelta(t, 0.33, EstimateCost(1_000_000, "gpt-4o-mini"), 1e-9)
	// 5*0.6 + 15*0.4 = 9 / 1M
	assert.InDelta(t, 0.009, EstimateCost(1000, "gpt-4o"), 1e-9)
	assert.Equal(t, EstimateCost(1234, "gpt-4o-mini"), EstimateCost(1234, "unknown-model"))
	assert.InDelta(t, 0.000012, EstimateCost(1000, "text-embedding-3-small"), 1e-12)
}

func TestExceededMessage(t *testing.T) {
	assert.Contains(t, ExceededMessage(classify.LanguageRussian), "лимита")
	assert.Contains(t, ExceededMessage("de"), "daily usage limit")
}
