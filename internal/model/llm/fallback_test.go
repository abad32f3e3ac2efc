package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"house-ai/internal/model/llm"
	"house-ai/internal/model/llm/llmtest"
)

var req = llm.Request{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}}

func TestFallbackClient_Complete(t *testing.T) {
	primary := &llmtest.Fake{Name: "primary", Err: errors.New("down")}
	fallback := &llmtest.Fake{Name: "fallback", Replies: []string{"from fallback"}}
	c := llm.NewFallbackClient(primary, fallback, nil)

	out, err := c.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "from fallback", out.Content)
	assert.Equal(t, "fallback", out.Model)
	assert.Equal(t, 1, primary.CallCount())
	assert.Equal(t, 1, fallback.CallCount())
}

func TestFallbackClient_PrimaryOK(t *testing.T) {
	primary := llmtest.NewFake("ok")
	fallback := llmtest.NewFake("unused")
	c := llm.NewFallbackClient(primary, fallback, nil)
	out, err := c.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Content)
	assert.Zero(t, fallback.CallCount())
}

func TestFallbackClient_NoFallback(t *testing.T) {
	c := llm.NewFallbackClient(&llmtest.Fake{Err: errors.New("down")}, nil, nil)
	_, err := c.Complete(context.Background(), req)
	assert.Error(t, err)
}

func TestFallbackClient_StreamBeforeFirstDelta(t *testing.T) {
	primary := &llmtest.Fake{Name: "primary", Err: errors.New("down")}
	fallback := &llmtest.Fake{Name: "fallback", Replies: []string{"a b"}}
	c := llm.NewFallbackClient(primary, fallback, nil)

	var got string
	out, err := c.Stream(context.Background(), req, func(d string) error {
		got += d
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "a b", got)
	assert.Equal(t, "a b", out.Content)
}

func TestFallbackClient_StreamAfterFirstDeltaDoesNotSwitch(t *testing.T) {
	primary := &llmtest.Fake{Name: "primary", Replies: []string{"one two three"}, Err: errors.New("cut"), StreamErrAfter: 1}
	fallback := llmtest.NewFake("never")
	c := llm.NewFallbackClient(primary, fallback, nil)

	var got string
	_, err := c.Stream(context.Background(), req, func(d string) error {
		got += d
		return nil
	})
	assert.Error(t, err)
	assert.Equal(t, "one ", got)
	assert.Zero(t, fallback.CallCount())
}
