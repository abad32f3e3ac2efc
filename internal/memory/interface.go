// Package memory 会话记忆：缓存中的短期消息缓冲 + 关系库中的长期消息与摘要
package memory

import (
	"context"

	"house-ai/internal/model/llm"
)

// EphemeralLog 短期记忆：按会话保存最近的消息，带长度裁剪与过期
type EphemeralLog interface {
	Append(ctx context.Context, sessionID string, msg llm.Message) error
	// Recent 按追加顺序返回缓冲中的全部消息
	Recent(ctx context.Context, sessionID string) ([]llm.Message, error)
	// Pending 返回上次 Replace 之后追加的消息，即尚未进入摘要的部分
	Pending(ctx context.Context, sessionID string) ([]llm.Message, error)
	// Replace 用 msgs 整体替换缓冲，写入的消息标记为已摘要
	Replace(ctx context.Context, sessionID string, msgs []llm.Message) error
	Clear(ctx context.Context, sessionID string) error
}

// DurableSummaryStore 长期记忆：只追加的消息与摘要
type DurableSummaryStore interface {
	// LatestSummary 没有摘要时返回空串
	LatestSummary(ctx context.Context, sessionID string) (string, error)
	SaveSummary(ctx context.Context, sessionID, text string) error
	AppendMessage(ctx context.Context, sessionID string, msg llm.Message) error
	// RecentMessages 最近 limit 条，按时间正序
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]llm.Message, error)
}

// Context 组装提示词所需的会话上下文
type Context struct {
	Summary string        `json:"summary,omitempty"`
	Recent  []llm.Message `json:"recent_messages"`
}
