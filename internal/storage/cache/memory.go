// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// MemoryStore 内存缓存存储实现，单进程部署与测试使用
type MemoryStore struct {
	items map[string]*cacheItem
	mu    sync.Mutex
	now   func() time.Time
}

// cacheItem 缓存项；list 非 nil 时为列表类型
type cacheItem struct {
	value      []byte
	list       []string
	expiration time.Time
}

func (it *cacheItem) expired(now time.Time) bool {
	return !it.expiration.IsZero() && !now.Before(it.expiration)
}

// NewMemoryStore 创建新的内存缓存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*cacheItem),
		now:   time.Now,
	}
}

// lookup 返回未过期的项，过期项顺带清理；调用方持锁
func (s *MemoryStore) lookup(key string) (*cacheItem, bool) {
	item, ok := s.items[key]
	if !ok {
		return nil, false
	}
	if item.expired(s.now()) {
		delete(s.items, key)
		return nil, false
	}
	return item, true
}

func (s *MemoryStore) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

// Set 设置缓存
func (s *MemoryStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = &cacheItem{value: data, expiration: s.deadline(ttl)}
	return nil
}

// Get 获取缓存
func (s *MemoryStore) Get(ctx context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	item, ok := s.lookup(key)
	var data []byte
	if ok {
		data = item.value
	}
	s.mu.Unlock()

	if !ok || data == nil {
		return ErrMiss
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return nil
}

// Delete 删除缓存
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// IncrBy 原子自增；不存在的 key 从 0 开始，且不带过期时间
func (s *MemoryStore) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.lookup(key)
	if !ok {
		item = &cacheItem{}
		s.items[key] = item
	}
	var cur int64
	if len(item.value) > 0 {
		v, err := strconv.ParseInt(string(item.value), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value at %s is not an integer", key)
		}
		cur = v
	}
	cur += n
	item.value = []byte(strconv.FormatInt(cur, 10))
	return cur, nil
}

// Expire 设置过期时间；key 不存在时忽略
func (s *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.lookup(key); ok {
		item.expiration = s.deadline(ttl)
	}
	return nil
}

// TTL 剩余过期时间
func (s *MemoryStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.lookup(key)
	if !ok {
		return TTLMissing, nil
	}
	if item.expiration.IsZero() {
		return TTLNoExpiry, nil
	}
	return item.expiration.Sub(s.now()), nil
}

// ListAppend 追加并裁剪列表
func (s *MemoryStore) ListAppend(ctx context.Context, key string, value string, maxLen int, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.lookup(key)
	if !ok {
		item = &cacheItem{}
		s.items[key] = item
	}
	item.list = append(item.list, value)
	if maxLen > 0 && len(item.list) > maxLen {
		item.list = append([]string(nil), item.list[len(item.list)-maxLen:]...)
	}
	if ttl > 0 {
		item.expiration = s.deadline(ttl)
	}
	return nil
}

// ListRange 返回列表副本
func (s *MemoryStore) ListRange(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.lookup(key)
	if !ok {
		return nil, nil
	}
	return append([]string(nil), item.list...), nil
}

// Close 关闭缓存连接
func (s *MemoryStore) Close() error {
	return nil
}
