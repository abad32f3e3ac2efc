package memory

import (
	"context"

	"house-ai/internal/model/llm"
	"house-ai/internal/storage/metadata"
)

// MetadataStore 基于关系库的 DurableSummaryStore
type MetadataStore struct {
	store metadata.Store
}

// NewMetadataStore 包装 metadata.Store
func NewMetadataStore(store metadata.Store) *MetadataStore {
	return &MetadataStore{store: store}
}

// LatestSummary 返回最新摘要文本
func (s *MetadataStore) LatestSummary(ctx context.Context, sessionID string) (string, error) {
	sum, err := s.store.LatestSummary(ctx, sessionID)
	if err != nil || sum == nil {
		return "", err
	}
	return sum.Text, nil
}

// SaveSummary 插入新摘要行
func (s *MetadataStore) SaveSummary(ctx context.Context, sessionID, text string) error {
	return s.store.SaveSummary(ctx, &metadata.Summary{SessionID: sessionID, Text: text})
}

// AppendMessage 追加消息
func (s *MetadataStore) AppendMessage(ctx context.Context, sessionID string, msg llm.Message) error {
	return s.store.AppendMessage(ctx, &metadata.Message{SessionID: sessionID, Role: msg.Role, Content: msg.Content})
}

// RecentMessages 最近 limit 条消息
func (s *MetadataStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]llm.Message, error) {
	rows, err := s.store.RecentMessages(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]llm.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, llm.Message{Role: r.Role, Content: r.Content})
	}
	return out, nil
}
