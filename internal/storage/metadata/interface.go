package metadata

import (
	"context"
	"time"
)

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Store 关系型存储接口：会话、只追加的消息、摘要、用户画像与商品
type Store interface {
	// CreateSession 幂等创建会话；ID 已存在时返回已有记录（身份不可变）
	CreateSession(ctx context.Context, s *Session) (*Session, error)
	// GetSession 不存在时返回 errors.ErrNotFound
	GetSession(ctx context.Context, id string) (*Session, error)
	// ListSessions 按创建时间倒序列出用户的会话
	ListSessions(ctx context.Context, userID string, limit int) ([]*Session, error)
	// DeleteSession 删除会话及其消息、摘要
	DeleteSession(ctx context.Context, id string) error

	// AppendMessage 追加消息，ID/CreatedAt 为空时自动填充
	AppendMessage(ctx context.Context, m *Message) error
	// RecentMessages 返回最近 limit 条消息，按时间正序
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]*Message, error)

	// SaveSummary 插入新摘要行，旧摘要保留
	SaveSummary(ctx context.Context, s *Summary) error
	// LatestSummary 返回最新摘要，没有时返回 nil, nil
	LatestSummary(ctx context.Context, sessionID string) (*Summary, error)

	// GetUserProfile 不存在时返回 errors.ErrNotFound
	GetUserProfile(ctx context.Context, userID string) (*UserProfile, error)
	UpsertUserProfile(ctx context.Context, p *UserProfile) error

	// ListProducts 按品牌/价格过滤商品目录
	ListProducts(ctx context.Context, filter ProductFilter) ([]*Product, error)
	// FindProductByName 名称不区分大小写的子串匹配，取第一条；未找到返回 nil, nil
	FindProductByName(ctx context.Context, name string) (*Product, error)
	UpsertProduct(ctx context.Context, p *Product) error

	// SearchListings 平台在售商品，term 为空时不过滤
	SearchListings(ctx context.Context, term string, limit int) ([]*Listing, error)
	UpsertListing(ctx context.Context, l *Listing) error

	// Close 关闭存储连接
	Close() error
}

// Session 会话
type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id,omitempty"`
	AnonymousID string    `json:"anonymous_session_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Message 会话消息（只追加）
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary 会话摘要，每次替换都是新插入一行
type Summary struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// UserProfile 个性化所需的用户画像
type UserProfile struct {
	UserID     string `json:"user_id"`
	FullName   string `json:"full_name"`
	Username   string `json:"username"`
	Role       string `json:"role"` // user | seller | blogger
	OrderCount int    `json:"order_count"`
}

// DisplayName 优先全名，其次用户名
func (p *UserProfile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Username
}

// Product 商品目录条目（规格 + 评分）
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Brand       string  `json:"brand"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	CPU         string  `json:"cpu,omitempty"`
	GPU         string  `json:"gpu,omitempty"`
	RAM         string  `json:"ram,omitempty"`
	Storage     string  `json:"storage,omitempty"`
	Battery     string  `json:"battery,omitempty"`
	Display     string  `json:"display,omitempty"`
	Camera      string  `json:"camera,omitempty"`
	GamingScore float64 `json:"gaming_score"`
	CameraScore float64 `json:"camera_score"`
	ValueScore  float64 `json:"value_score"`
	TrendScore  float64 `json:"trend_score"`
	ImageURL    string  `json:"image_url,omitempty"`
}

// ProductFilter 商品查询条件
type ProductFilter struct {
	Brand    string   `json:"brand,omitempty"`
	MinPrice *float64 `json:"min_price,omitempty"`
	MaxPrice *float64 `json:"max_price,omitempty"`
	Limit    int      `json:"limit,omitempty"`
}

// Listing 平台上卖家发布的在售商品
type Listing struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
}
