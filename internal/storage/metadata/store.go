package metadata

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"house-ai/pkg/config"
)

// NewStore 根据配置创建元数据存储（memory | postgres | sqlite）
func NewStore(ctx context.Context, cfg config.MetadataConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "postgres":
		return NewPostgresStore(ctx, cfg.DSN, cfg.PoolSize)
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("不支持的元数据存储类型: %s", cfg.Type)
	}
}

const defaultProductLimit = 20

func fillMessage(m *Message) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
}

func fillSummary(s *Summary) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
}

func fillSession(s *Session) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
}

func productLimit(n int) int {
	if n <= 0 {
		return defaultProductLimit
	}
	return n
}
