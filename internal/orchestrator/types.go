package orchestrator

import (
	"house-ai/internal/catalog"
	"house-ai/internal/classify"
)

// ChatRequest 一轮对话请求
type ChatRequest struct {
	Message   string            `json:"message"`
	SessionID string            `json:"session_id,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	Language  classify.Language `json:"language,omitempty"`
}

// ChatResponse 一轮对话结果
type ChatResponse struct {
	Message    string                   `json:"message"`
	SessionID  string                   `json:"session_id"`
	Intent     classify.Intent          `json:"intent,omitempty"`
	Emotion    classify.Emotion         `json:"emotion,omitempty"`
	Language   classify.Language        `json:"language,omitempty"`
	Products   []catalog.ProductCard    `json:"products,omitempty"`
	Comparison *catalog.ComparisonTable `json:"comparison,omitempty"`
	Sources    []string                 `json:"sources"`
	TokensUsed int                      `json:"tokens_used"`
	Model      string                   `json:"model,omitempty"`
}

// 流式输出块类型
const (
	ChunkText  = "text"
	ChunkDone  = "done"
	ChunkError = "error"
)

// Chunk 流式输出块
type Chunk struct {
	Type    string         `json:"type"`
	Content string         `json:"content,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// RecommendRequest 推荐接口请求
type RecommendRequest struct {
	Query     string            `json:"query"`
	BudgetMin *float64          `json:"budget_min,omitempty"`
	BudgetMax *float64          `json:"budget_max,omitempty"`
	Focus     string            `json:"focus,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	Language  classify.Language `json:"language,omitempty"`
}

// RecommendResponse 推荐接口响应
type RecommendResponse struct {
	Message    string                `json:"message"`
	Products   []catalog.ProductCard `json:"products"`
	SessionID  string                `json:"session_id"`
	Language   classify.Language     `json:"language"`
	TokensUsed int                   `json:"tokens_used"`
}

// CompareRequest 对比接口请求
type CompareRequest struct {
	ProductNames []string          `json:"product_names"`
	SessionID    string            `json:"session_id,omitempty"`
	UserID       string            `json:"user_id,omitempty"`
	Language     classify.Language `json:"language,omitempty"`
}

// CompareResponse 对比接口响应
type CompareResponse struct {
	Message    string                   `json:"message"`
	Comparison *catalog.ComparisonTable `json:"comparison"`
	SessionID  string                   `json:"session_id"`
	Language   classify.Language        `json:"language"`
	TokensUsed int                      `json:"tokens_used"`
}

// SessionRequest 创建会话请求
type SessionRequest struct {
	UserID             string `json:"user_id,omitempty"`
	AnonymousSessionID string `json:"anonymous_session_id,omitempty"`
}
