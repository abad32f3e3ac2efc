package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss key 不存在或已过期
var ErrMiss = errors.New("cache miss")

// TTL 的特殊返回值，与 Redis 语义一致
const (
	TTLNoExpiry time.Duration = -1
	TTLMissing  time.Duration = -2
)

// Store 缓存存储接口：JSON 值、原子计数器、带裁剪的列表
type Store interface {
	// Set 设置缓存，value 以 JSON 存储；ttl<=0 表示不过期
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Get 获取缓存并反序列化到 dest，不存在时返回 ErrMiss
	Get(ctx context.Context, key string, dest interface{}) error
	// Delete 删除 key（含列表），不存在不报错
	Delete(ctx context.Context, key string) error
	// IncrBy 原子自增并返回新值
	IncrBy(ctx context.Context, key string, n int64) (int64, error)
	// Expire 设置过期时间
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// TTL 剩余过期时间；无过期为 TTLNoExpiry，不存在为 TTLMissing
	TTL(ctx context.Context, key string) (time.Duration, error)
	// ListAppend 追加到列表尾部，只保留最后 maxLen 个元素并刷新过期时间
	ListAppend(ctx context.Context, key string, value string, maxLen int, ttl time.Duration) error
	// ListRange 返回列表全部元素（按追加顺序）
	ListRange(ctx context.Context, key string) ([]string, error)
	// Close 关闭缓存连接
	Close() error
}
