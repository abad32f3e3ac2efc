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
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	herrors "house-ai/pkg/errors"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS chat_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '',
		anonymous_session_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_sessions_user ON chat_sessions(user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, seq)`,
	`CREATE TABLE IF NOT EXISTS chat_summaries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		session_id TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_profiles (
		user_id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'user',
		order_count INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS ai_products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		brand TEXT NOT NULL DEFAULT '',
		price REAL NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'UZS',
		cpu TEXT NOT NULL DEFAULT '',
		gpu TEXT NOT NULL DEFAULT '',
		ram TEXT NOT NULL DEFAULT '',
		storage TEXT NOT NULL DEFAULT '',
		battery TEXT NOT NULL DEFAULT '',
		display TEXT NOT NULL DEFAULT '',
		camera TEXT NOT NULL DEFAULT '',
		gaming_score REAL NOT NULL DEFAULT 0,
		camera_score REAL NOT NULL DEFAULT 0,
		value_score REAL NOT NULL DEFAULT 0,
		trend_score REAL NOT NULL DEFAULT 0,
		image_url TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS platform_listings (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		price REAL NOT NULL DEFAULT 0
	)`,
}

// SQLiteStore 基于 modernc.org/sqlite 的单机实现，适合本地开发与 CLI
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore 打开（或创建）SQLite 数据库并建表；dsn 为空时使用内存库
func NewSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// 内存库每个连接各自独立，只能保留一个连接
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite schema: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s *SQLiteStore) CreateSession(ctx context.Context, sess *Session) (*Session, error) {
	fillSession(sess)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO chat_sessions (id, user_id, anonymous_session_id, created_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.AnonymousID, formatTime(sess.CreatedAt))
	if err != nil {
		return nil, err
	}
	return s.GetSession(ctx, sess.ID)
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	var (
		sess    Session
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, anonymous_session_id, created_at FROM chat_sessions WHERE id = ?`, id).
		Scan(&sess.ID, &sess.UserID, &sess.AnonymousID, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, herrors.Wrapf(herrors.ErrNotFound, "session %s", id)
		}
		return nil, err
	}
	sess.CreatedAt = parseTime(created)
	return &sess, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, userID string, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, anonymous_session_id, created_at FROM chat_sessions
		 WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Session
	for rows.Next() {
		var (
			sess    Session
			created string
		)
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.AnonymousID, &created); err != nil {
			return nil, err
		}
		sess.CreatedAt = parseTime(created)
		out = append(out, &sess)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, q := range []string{
		`DELETE FROM chat_messages WHERE session_id = ?`,
		`DELETE FROM chat_summaries WHERE session_id = ?`,
		`DELETE FROM chat_sessions WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, m *Message) error {
	fillMessage(m)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, m.Role, m.Content, formatTime(m.CreatedAt))
	return err
}

func (s *SQLiteStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, created_at FROM (
			SELECT seq, id, session_id, role, content, created_at FROM chat_messages
			WHERE session_id = ? ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Message
	for rows.Next() {
		var (
			m       Message
			created string
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &created); err != nil {
			return nil, err
		}
		m.CreatedAt = parseTime(created)
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveSummary(ctx context.Context, sum *Summary) error {
	fillSummary(sum)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_summaries (id, session_id, text, created_at) VALUES (?, ?, ?, ?)`,
		sum.ID, sum.SessionID, sum.Text, formatTime(sum.CreatedAt))
	return err
}

func (s *SQLiteStore) LatestSummary(ctx context.Context, sessionID string) (*Summary, error) {
	var (
		sum     Summary
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, text, created_at FROM chat_summaries
		 WHERE session_id = ? ORDER BY seq DESC LIMIT 1`, sessionID).
		Scan(&sum.ID, &sum.SessionID, &sum.Text, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	sum.CreatedAt = parseTime(created)
	return &sum, nil
}

func (s *SQLiteStore) GetUserProfile(ctx context.Context, userID string) (*UserProfile, error) {
	var p UserProfile
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, full_name, username, role, order_count FROM user_profiles WHERE user_id = ?`, userID).
		Scan(&p.UserID, &p.FullName, &p.Username, &p.Role, &p.OrderCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, herrors.Wrapf(herrors.ErrNotFound, "profile %s", userID)
		}
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) UpsertUserProfile(ctx context.Context, p *UserProfile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO user_profiles (user_id, full_name, username, role, order_count) VALUES (?, ?, ?, ?, ?)`,
		p.UserID, p.FullName, p.Username, p.Role, p.OrderCount)
	return err
}

func (s *SQLiteStore) ListProducts(ctx context.Context, filter ProductFilter) ([]*Product, error) {
	var (
		where []string
		args  []any
	)
	if filter.Brand != "" {
		where = append(where, "lower(brand) LIKE ?")
		args = append(args, "%"+strings.ToLower(filter.Brand)+"%")
	}
	if filter.MinPrice != nil {
		where = append(where, "price >= ?")
		args = append(args, *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		where = append(where, "price <= ?")
		args = append(args, *filter.MaxPrice)
	}
	q := "SELECT " + productColumns + " FROM ai_products"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY name LIMIT ?"
	args = append(args, productLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) FindProductByName(ctx context.Context, name string) (*Product, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM ai_products WHERE lower(name) LIKE ? ORDER BY name LIMIT 1", "%"+needle+"%")
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (s *SQLiteStore) UpsertProduct(ctx context.Context, p *Product) error {
	if p.ID == "" {
		return fmt.Errorf("product id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO ai_products (`+productColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Brand, p.Price, p.Currency, p.CPU, p.GPU, p.RAM, p.Storage, p.Battery, p.Display, p.Camera,
		p.GamingScore, p.CameraScore, p.ValueScore, p.TrendScore, p.ImageURL)
	return err
}

func (s *SQLiteStore) SearchListings(ctx context.Context, term string, limit int) ([]*Listing, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, price FROM platform_listings WHERE lower(title) LIKE ? ORDER BY title LIMIT ?`,
		"%"+strings.ToLower(term)+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Listing
	for rows.Next() {
		var l Listing
		if err := rows.Scan(&l.ID, &l.Title, &l.Price); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertListing(ctx context.Context, l *Listing) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO platform_listings (id, title, price) VALUES (?, ?, ?)`, l.ID, l.Title, l.Price)
	return err
}

// Close 关闭数据库
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
