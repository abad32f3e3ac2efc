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

package metadata

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"house-ai/pkg/errors"
)

// MemoryStore 内存元数据存储实现
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	messages  map[string][]*Message
	summaries map[string][]*Summary
	profiles  map[string]*UserProfile
	products  map[string]*Product
	listings  map[string]*Listing
}

// NewMemoryStore 创建新的内存元数据存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:  make(map[string]*Session),
		messages:  make(map[string][]*Message),
		summaries: make(map[string][]*Summary),
		profiles:  make(map[string]*UserProfile),
		products:  make(map[string]*Product),
		listings:  make(map[string]*Listing),
	}
}

func (s *MemoryStore) CreateSession(ctx context.Context, sess *Session) (*Session, error) {
	fillSession(sess)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[sess.ID]; ok {
		cp := *existing
		return &cp, nil
	}
	cp := *sess
	s.sessions[sess.ID] = &cp
	out := cp
	return &out, nil
}

func (s *MemoryStore) GetSession(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "session %s", id)
	}
	cp := *sess
	return &cp, nil
}

func (s *MemoryStore) ListSessions(ctx context.Context, userID string, limit int) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			cp := *sess
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	delete(s.messages, id)
	delete(s.summaries, id)
	return nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, m *Message) error {
	fillMessage(m)
	cp := *m
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.SessionID] = append(s.messages[m.SessionID], &cp)
	return nil
}

// RecentMessages 内存中按追加顺序即时间顺序
func (s *MemoryStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[sessionID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]*Message, 0, len(all))
	for _, m := range all {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) SaveSummary(ctx context.Context, sum *Summary) error {
	fillSummary(sum)
	cp := *sum
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[sum.SessionID] = append(s.summaries[sum.SessionID], &cp)
	return nil
}

func (s *MemoryStore) LatestSummary(ctx context.Context, sessionID string) (*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.summaries[sessionID]
	if len(list) == 0 {
		return nil, nil
	}
	cp := *list[len(list)-1]
	return &cp, nil
}

func (s *MemoryStore) GetUserProfile(ctx context.Context, userID string) (*UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "profile %s", userID)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) UpsertUserProfile(ctx context.Context, p *UserProfile) error {
	cp := *p
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = &cp
	return nil
}

func (s *MemoryStore) ListProducts(ctx context.Context, filter ProductFilter) ([]*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	brand := strings.ToLower(filter.Brand)
	var out []*Product
	for _, p := range s.sortedProducts() {
		if brand != "" && !strings.Contains(strings.ToLower(p.Brand), brand) {
			continue
		}
		if filter.MinPrice != nil && p.Price < *filter.MinPrice {
			continue
		}
		if filter.MaxPrice != nil && p.Price > *filter.MaxPrice {
			continue
		}
		cp := *p
		out = append(out, &cp)
		if len(out) >= productLimit(filter.Limit) {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) FindProductByName(ctx context.Context, name string) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, nil
	}
	for _, p := range s.sortedProducts() {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

// sortedProducts 按名称排序，保证结果稳定；调用方持锁
func (s *MemoryStore) sortedProducts() []*Product {
	list := make([]*Product, 0, len(s.products))
	for _, p := range s.products {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

func (s *MemoryStore) UpsertProduct(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cp := *p
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = &cp
	return nil
}

func (s *MemoryStore) SearchListings(ctx context.Context, term string, limit int) ([]*Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(term)
	list := make([]*Listing, 0, len(s.listings))
	for _, l := range s.listings {
		if needle == "" || strings.Contains(strings.ToLower(l.Title), needle) {
			cp := *l
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Title < list[j].Title })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (s *MemoryStore) UpsertListing(ctx context.Context, l *Listing) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	cp := *l
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[l.ID] = &cp
	return nil
}

// Close 关闭存储连接
func (s *MemoryStore) Close() error {
	return nil
}
