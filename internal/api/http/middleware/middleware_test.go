package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterPerClient(t *testing.T) {
	l := NewRateLimiter(3, 2)

	for i := 0; i < 2; i++ {
		d := l.Allow("ip:1.2.3.4", false)
		require.True(t, d.Allowed)
		assert.Equal(t, 2, d.Limit)
		assert.Equal(t, 1-i, d.Remaining)
	}
	d := l.Allow("ip:1.2.3.4", false)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, 30*time.Second)

	// 其它客户端不受影响
	assert.True(t, l.Allow("ip:5.6.7.8", false).Allowed)

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow("user:u-1", true).Allowed)
	}
	assert.False(t, l.Allow("user:u-1", true).Allowed)
}

func TestRateLimiterDefaults(t *testing.T) {
	l := NewRateLimiter(0, -1)
	assert.Equal(t, 30, l.Allow("user:a", true).Limit)
	assert.Equal(t, 10, l.Allow("ip:a", false).Limit)
}

func TestJWTAuthIssue(t *testing.T) {
	_, err := NewJWTAuth(nil, time.Hour)
	assert.Error(t, err)

	j, err := NewJWTAuth([]byte("k"), 0)
	require.NoError(t, err)
	token, expire, err := j.Issue("u-1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), expire, time.Minute)
}
