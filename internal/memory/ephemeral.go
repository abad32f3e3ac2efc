package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"house-ai/internal/model/llm"
	"house-ai/internal/storage/cache"
)

const (
	defaultBufferMessages = 20
	defaultBufferTTL      = 24 * time.Hour
)

// entry 缓冲中的一条消息；Retained 表示摘要后保留下来的锚点消息
type entry struct {
	llm.Message
	Retained bool `json:"retained,omitempty"`
}

// CacheLog 基于缓存列表的 EphemeralLog，Redis 下即 RPUSH + LTRIM + EXPIRE
type CacheLog struct {
	store  cache.Store
	maxLen int
	ttl    time.Duration
}

// NewCacheLog maxLen/ttl 非正时使用默认值（20 条、24h）
func NewCacheLog(store cache.Store, maxLen int, ttl time.Duration) *CacheLog {
	if maxLen <= 0 {
		maxLen = defaultBufferMessages
	}
	if ttl <= 0 {
		ttl = defaultBufferTTL
	}
	return &CacheLog{store: store, maxLen: maxLen, ttl: ttl}
}

// Append 追加一条消息
func (l *CacheLog) Append(ctx context.Context, sessionID string, msg llm.Message) error {
	return l.push(ctx, sessionID, entry{Message: msg})
}

func (l *CacheLog) push(ctx context.Context, sessionID string, e entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return l.store.ListAppend(ctx, cache.SessionKey(sessionID), string(data), l.maxLen, l.ttl)
}

// Recent 返回缓冲中的消息
func (l *CacheLog) Recent(ctx context.Context, sessionID string) ([]llm.Message, error) {
	entries, err := l.entries(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]llm.Message, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out, nil
}

// Pending 跳过锚点消息
func (l *CacheLog) Pending(ctx context.Context, sessionID string) ([]llm.Message, error) {
	entries, err := l.entries(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]llm.Message, 0, len(entries))
	for _, e := range entries {
		if !e.Retained {
			out = append(out, e.Message)
		}
	}
	return out, nil
}

func (l *CacheLog) entries(ctx context.Context, sessionID string) ([]entry, error) {
	raw, err := l.store.ListRange(ctx, cache.SessionKey(sessionID))
	if err != nil {
		return nil, err
	}
	out := make([]entry, 0, len(raw))
	for _, item := range raw {
		var e entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("解析会话缓冲失败: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Replace 清空后按顺序重新写入，写入的消息标记为锚点
func (l *CacheLog) Replace(ctx context.Context, sessionID string, msgs []llm.Message) error {
	if err := l.Clear(ctx, sessionID); err != nil {
		return err
	}
	for _, m := range msgs {
		if err := l.push(ctx, sessionID, entry{Message: m, Retained: true}); err != nil {
			return err
		}
	}
	return nil
}

// Clear 删除缓冲
func (l *CacheLog) Clear(ctx context.Context, sessionID string) error {
	return l.store.Delete(ctx, cache.SessionKey(sessionID))
}
