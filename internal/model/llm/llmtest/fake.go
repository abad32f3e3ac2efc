// Package llmtest 提供测试用的脚本化 LLM 客户端
package llmtest

import (
	"context"
	"strings"
	"sync"

	"house-ai/internal/model/llm"
)

// Fake 按顺序返回 Replies；用尽后重复最后一条。Err 非空时所有调用失败
type Fake struct {
	Name    string
	Replies []string
	Err     error
	// StreamErrAfter >0 时流式输出该数量的增量后返回 Err
	StreamErrAfter int

	mu    sync.Mutex
	calls []llm.Request
	next  int
}

// NewFake 创建返回固定回复的 Fake
func NewFake(replies ...string) *Fake {
	return &Fake{Name: "fake-model", Replies: replies}
}

func (f *Fake) record(req llm.Request) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if len(f.Replies) == 0 {
		return ""
	}
	i := f.next
	if i >= len(f.Replies) {
		i = len(f.Replies) - 1
	} else {
		f.next++
	}
	return f.Replies[i]
}

// Calls 返回收到的请求副本
func (f *Fake) Calls() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.calls...)
}

// CallCount 调用次数
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *Fake) completion(content string, req llm.Request) *llm.Completion {
	prompt := llm.MessagesTokens(req.Messages)
	out := llm.EstimateTokens(content)
	return &llm.Completion{
		Content:      content,
		Model:        f.Model(),
		FinishReason: "stop",
		Usage:        llm.Usage{PromptTokens: prompt, CompletionTokens: out, TotalTokens: prompt + out},
	}
}

// Complete 实现 llm.Client
func (f *Fake) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	reply := f.record(req)
	if f.Err != nil && f.StreamErrAfter == 0 {
		return nil, f.Err
	}
	return f.completion(reply, req), nil
}

// Stream 按空格切分回复逐词输出
func (f *Fake) Stream(ctx context.Context, req llm.Request, onDelta func(string) error) (*llm.Completion, error) {
	reply := f.record(req)
	if f.Err != nil && f.StreamErrAfter == 0 {
		return nil, f.Err
	}
	var sb strings.Builder
	for i, word := range strings.SplitAfter(reply, " ") {
		if f.Err != nil && i >= f.StreamErrAfter {
			return f.completion(sb.String(), req), f.Err
		}
		if err := ctx.Err(); err != nil {
			return f.completion(sb.String(), req), err
		}
		sb.WriteString(word)
		if err := onDelta(word); err != nil {
			return f.completion(sb.String(), req), err
		}
	}
	return f.completion(sb.String(), req), nil
}

// Model 实现 llm.Client
func (f *Fake) Model() string {
	if f.Name == "" {
		return "fake-model"
	}
	return f.Name
}

// Provider 实现 llm.Client
func (f *Fake) Provider() string { return "fake" }
