package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", GetUserID(ctx))
	assert.False(t, IsAuthenticated(ctx))

	ctx = WithUserID(ctx, "u-1")
	assert.Equal(t, "u-1", GetUserID(ctx))
	assert.True(t, IsAuthenticated(ctx))

	assert.False(t, IsAuthenticated(WithUserID(context.Background(), "")))
}

func TestResolveUserID(t *testing.T) {
	assert.Equal(t, "body", ResolveUserID(context.Background(), "body"))
	ctx := WithUserID(context.Background(), "token-sub")
	assert.Equal(t, "token-sub", ResolveUserID(ctx, "body"))
}

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))
}
