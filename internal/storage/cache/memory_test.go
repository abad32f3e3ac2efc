package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Set_Get_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "k1", map[string]string{"message": "hi"}, 0))

	var v map[string]string
	require.NoError(t, s.Get(ctx, "k1", &v))
	assert.Equal(t, "hi", v["message"])

	require.NoError(t, s.Delete(ctx, "k1"))
	assert.True(t, errors.Is(s.Get(ctx, "k1", &v), ErrMiss))
	// 删除不存在的 key 不报错
	assert.NoError(t, s.Delete(ctx, "k1"))
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))
	ttl, err := s.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	now = now.Add(2 * time.Minute)
	var v string
	assert.ErrorIs(t, s.Get(ctx, "k", &v), ErrMiss)
	ttl, _ = s.TTL(ctx, "k")
	assert.Equal(t, TTLMissing, ttl)
}

func TestMemoryStore_IncrBy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	n, err := s.IncrBy(ctx, "tokens:u:daily", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), n)

	ttl, _ := s.TTL(ctx, "tokens:u:daily")
	assert.Equal(t, TTLNoExpiry, ttl)
	require.NoError(t, s.Expire(ctx, "tokens:u:daily", 24*time.Hour))
	ttl, _ = s.TTL(ctx, "tokens:u:daily")
	assert.Greater(t, ttl, time.Duration(0))

	n, err = s.IncrBy(ctx, "tokens:u:daily", 50)
	require.NoError(t, err)
	assert.Equal(t, int64(150), n)

	var got int64
	require.NoError(t, s.Get(ctx, "tokens:u:daily", &got))
	assert.Equal(t, int64(150), got)
}

func TestMemoryStore_IncrBy_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.IncrBy(ctx, "c", 2)
		}()
	}
	wg.Wait()
	var got int64
	require.NoError(t, s.Get(ctx, "c", &got))
	assert.Equal(t, int64(100), got)
}

func TestMemoryStore_IncrBy_NotInteger(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "k", "text", 0))
	_, err := s.IncrBy(ctx, "k", 1)
	assert.Error(t, err)
}

func TestMemoryStore_ListAppendTrims(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for i := 0; i < 25; i++ {
		require.NoError(t, s.ListAppend(ctx, "session:s:messages", fmt.Sprintf("m%d", i), 20, time.Hour))
	}
	items, err := s.ListRange(ctx, "session:s:messages")
	require.NoError(t, err)
	require.Len(t, items, 20)
	assert.Equal(t, "m5", items[0])
	assert.Equal(t, "m24", items[19])

	require.NoError(t, s.Delete(ctx, "session:s:messages"))
	items, err = s.ListRange(ctx, "session:s:messages")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestNewCache_Unsupported(t *testing.T) {
	_, err := NewCache(cacheConfig("etcd"))
	assert.Error(t, err)
	s, err := NewCache(cacheConfig(""))
	require.NoError(t, err)
	assert.NotNil(t, s)
}
