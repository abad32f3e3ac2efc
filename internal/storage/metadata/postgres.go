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
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	herrors "house-ai/pkg/errors"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS chat_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '',
		anonymous_session_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_sessions_user ON chat_sessions(user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, seq)`,
	`CREATE TABLE IF NOT EXISTS chat_summaries (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		session_id TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_summaries_session ON chat_summaries(session_id, seq)`,
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
		price DOUBLE PRECISION NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'UZS',
		cpu TEXT NOT NULL DEFAULT '',
		gpu TEXT NOT NULL DEFAULT '',
		ram TEXT NOT NULL DEFAULT '',
		storage TEXT NOT NULL DEFAULT '',
		battery TEXT NOT NULL DEFAULT '',
		display TEXT NOT NULL DEFAULT '',
		camera TEXT NOT NULL DEFAULT '',
		gaming_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		camera_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		value_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		trend_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		image_url TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS platform_listings (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		price DOUBLE PRECISION NOT NULL DEFAULT 0
	)`,
}

const productColumns = `id, name, brand, price, currency, cpu, gpu, ram, storage, battery, display, camera,
	gaming_score, camera_score, value_score, trend_score, image_url`

// rowScanner pgx.Row / pgx.Rows / *sql.Row / *sql.Rows 的公共部分
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Brand, &p.Price, &p.Currency, &p.CPU, &p.GPU, &p.RAM, &p.Storage,
		&p.Battery, &p.Display, &p.Camera, &p.GamingScore, &p.CameraScore, &p.ValueScore, &p.TrendScore, &p.ImageURL)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PostgresStore PostgreSQL 实现
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore 创建基于 PostgreSQL 的元数据存储并确保表结构存在
func NewPostgresStore(ctx context.Context, dsn string, poolSize int) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if poolSize > 0 {
		config.MaxConns = int32(poolSize)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, sess *Session) (*Session, error) {
	fillSession(sess)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_sessions (id, user_id, anonymous_session_id, created_at)
		 VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING`,
		sess.ID, sess.UserID, sess.AnonymousID, sess.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s.GetSession(ctx, sess.ID)
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, anonymous_session_id, created_at FROM chat_sessions WHERE id = $1`, id).
		Scan(&sess.ID, &sess.UserID, &sess.AnonymousID, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, herrors.Wrapf(herrors.ErrNotFound, "session %s", id)
		}
		return nil, err
	}
	return &sess, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, userID string, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, anonymous_session_id, created_at FROM chat_sessions
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.AnonymousID, &sess.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &sess)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	for _, q := range []string{
		`DELETE FROM chat_messages WHERE session_id = $1`,
		`DELETE FROM chat_summaries WHERE session_id = $1`,
		`DELETE FROM chat_sessions WHERE id = $1`,
	} {
		if _, err := tx.Exec(ctx, q, id); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) AppendMessage(ctx context.Context, m *Message) error {
	fillMessage(m)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_messages (id, session_id, role, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.SessionID, m.Role, m.Content, m.CreatedAt)
	return err
}

func (s *PostgresStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, role, content, created_at FROM (
			SELECT seq, id, session_id, role, content, created_at FROM chat_messages
			WHERE session_id = $1 ORDER BY seq DESC LIMIT $2
		) recent ORDER BY seq ASC`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveSummary(ctx context.Context, sum *Summary) error {
	fillSummary(sum)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_summaries (id, session_id, text, created_at) VALUES ($1, $2, $3, $4)`,
		sum.ID, sum.SessionID, sum.Text, sum.CreatedAt)
	return err
}

func (s *PostgresStore) LatestSummary(ctx context.Context, sessionID string) (*Summary, error) {
	var sum Summary
	err := s.pool.QueryRow(ctx,
		`SELECT id, session_id, text, created_at FROM chat_summaries
		 WHERE session_id = $1 ORDER BY seq DESC LIMIT 1`, sessionID).
		Scan(&sum.ID, &sum.SessionID, &sum.Text, &sum.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &sum, nil
}

func (s *PostgresStore) GetUserProfile(ctx context.Context, userID string) (*UserProfile, error) {
	var p UserProfile
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, full_name, username, role, order_count FROM user_profiles WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.FullName, &p.Username, &p.Role, &p.OrderCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, herrors.Wrapf(herrors.ErrNotFound, "profile %s", userID)
		}
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) UpsertUserProfile(ctx context.Context, p *UserProfile) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_profiles (user_id, full_name, username, role, order_count)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE SET full_name = $2, username = $3, role = $4, order_count = $5`,
		p.UserID, p.FullName, p.Username, p.Role, p.OrderCount)
	return err
}

func (s *PostgresStore) ListProducts(ctx context.Context, filter ProductFilter) ([]*Product, error) {
	var (
		where []string
		args  []any
	)
	if filter.Brand != "" {
		args = append(args, "%"+filter.Brand+"%")
		where = append(where, fmt.Sprintf("brand ILIKE $%d", len(args)))
	}
	if filter.MinPrice != nil {
		args = append(args, *filter.MinPrice)
		where = append(where, fmt.Sprintf("price >= $%d", len(args)))
	}
	if filter.MaxPrice != nil {
		args = append(args, *filter.MaxPrice)
		where = append(where, fmt.Sprintf("price <= $%d", len(args)))
	}
	q := "SELECT " + productColumns + " FROM ai_products"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, productLimit(filter.Limit))
	q += fmt.Sprintf(" ORDER BY name LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, q, args...)
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

func (s *PostgresStore) FindProductByName(ctx context.Context, name string) (*Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	row := s.pool.QueryRow(ctx,
		"SELECT "+productColumns+" FROM ai_products WHERE name ILIKE $1 ORDER BY name LIMIT 1", "%"+name+"%")
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) UpsertProduct(ctx context.Context, p *Product) error {
	if p.ID == "" {
		return fmt.Errorf("product id is required")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ai_products (`+productColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 ON CONFLICT (id) DO UPDATE SET name = $2, brand = $3, price = $4, currency = $5, cpu = $6, gpu = $7,
		   ram = $8, storage = $9, battery = $10, display = $11, camera = $12, gaming_score = $13,
		   camera_score = $14, value_score = $15, trend_score = $16, image_url = $17`,
		p.ID, p.Name, p.Brand, p.Price, p.Currency, p.CPU, p.GPU, p.RAM, p.Storage, p.Battery, p.Display, p.Camera,
		p.GamingScore, p.CameraScore, p.ValueScore, p.TrendScore, p.ImageURL)
	return err
}

func (s *PostgresStore) SearchListings(ctx context.Context, term string, limit int) ([]*Listing, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, price FROM platform_listings WHERE title ILIKE $1 ORDER BY title LIMIT $2`,
		"%"+term+"%", limit)
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

func (s *PostgresStore) UpsertListing(ctx context.Context, l *Listing) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO platform_listings (id, title, price) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET title = $2, price = $3`,
		l.ID, l.Title, l.Price)
	return err
}

// Close 关闭连接池
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
