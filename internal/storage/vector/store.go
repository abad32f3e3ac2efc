package vector

import (
	"fmt"

	"house-ai/pkg/config"
)

// NewStore 根据配置创建进程内向量存储；redis 后端由 einoext 直接接入 eino-ext 组件
func NewStore(cfg config.VectorConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory", "redis":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("不支持的向量存储类型: %s", cfg.Type)
	}
}
