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

// Package http 基于 Hertz 的 HTTP API：对话、流式对话、推荐、对比与会话
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"house-ai/internal/api/http/middleware"
	"house-ai/internal/storage/metadata"
	"house-ai/internal/orchestrator"
	herrors "house-ai/pkg/errors"
	"house-ai/pkg/log"
	"house-ai/pkg/metrics"
)

// Service HTTP 层依赖的编排能力
type Service interface {
	Chat(ctx context.Context, req orchestrator.ChatRequest) *orchestrator.ChatResponse
	Stream(ctx context.Context, req orchestrator.ChatRequest, emit func(orchestrator.Chunk) error) error
	Recommend(ctx context.Context, req orchestrator.RecommendRequest) (*orchestrator.RecommendResponse, error)
	Compare(ctx context.Context, req orchestrator.CompareRequest) (*orchestrator.CompareResponse, error)
	CreateSession(ctx context.Context, req orchestrator.SessionRequest) (*metadata.Session, error)
}

// Info 服务信息，用于 / 与 /health
type Info struct {
	Name    string
	Version string
}

// Handler HTTP 处理器
type Handler struct {
	svc     Service
	info    Info
	logger  *log.Logger
	schemas *schemas
}

// NewHandler 创建处理器并编译请求 schema
func NewHandler(svc Service, info Info, logger *log.Logger) (*Handler, error) {
	if logger == nil {
		logger = log.Nop()
	}
	s, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	return &Handler{svc: svc, info: info, logger: logger, schemas: s}, nil
}

// Root GET /
func (h *Handler) Root(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]any{
		"name":    h.info.Name,
		"version": h.info.Version,
		"endpoints": []string{
			"POST /api/chat", "POST /api/chat/stream", "POST /api/recommend",
			"POST /api/compare", "POST /api/session", "GET /health", "GET /metrics",
		},
	})
}

// Health GET /health
func (h *Handler) Health(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]string{"status": "healthy", "version": h.info.Version})
}

// Metrics GET /metrics
func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		h.fail(ctx, c, err)
		return
	}
	c.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}

// Chat POST /api/chat
func (h *Handler) Chat(ctx context.Context, c *app.RequestContext) {
	var req orchestrator.ChatRequest
	if !h.bind(c, h.schemas.chat, &req) {
		return
	}
	c.JSON(consts.StatusOK, h.svc.Chat(ctx, req))
}

// ChatStream POST /api/chat/stream，按行输出 JSON 块（NDJSON）
func (h *Handler) ChatStream(ctx context.Context, c *app.RequestContext) {
	var req orchestrator.ChatRequest
	if !h.bind(c, h.schemas.chat, &req) {
		return
	}
	pr, pw := io.Pipe()
	go func() {
		enc := json.NewEncoder(pw)
		err := h.svc.Stream(ctx, req, func(chunk orchestrator.Chunk) error {
			return enc.Encode(chunk)
		})
		if err != nil {
			h.logger.WarnContext(ctx, "流式对话中断", "error", err)
		}
		_ = pw.Close()
	}()
	c.Response.Header.Set("Cache-Control", "no-cache")
	c.Response.Header.Set("X-Accel-Buffering", "no")
	c.SetContentType("application/x-ndjson")
	c.SetBodyStream(pr, -1)
}

// Recommend POST /api/recommend
func (h *Handler) Recommend(ctx context.Context, c *app.RequestContext) {
	var req orchestrator.RecommendRequest
	if !h.bind(c, h.schemas.recommend, &req) {
		return
	}
	if req.BudgetMin != nil && req.BudgetMax != nil && *req.BudgetMin > *req.BudgetMax {
		h.reject(c, consts.StatusBadRequest, "validation failed", "budget_min must be <= budget_max")
		return
	}
	resp, err := h.svc.Recommend(ctx, req)
	if err != nil {
		h.fail(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, resp)
}

// Compare POST /api/compare
func (h *Handler) Compare(ctx context.Context, c *app.RequestContext) {
	var req orchestrator.CompareRequest
	if !h.bind(c, h.schemas.compare, &req) {
		return
	}
	resp, err := h.svc.Compare(ctx, req)
	if err != nil {
		h.fail(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, resp)
}

// Session POST /api/session
func (h *Handler) Session(ctx context.Context, c *app.RequestContext) {
	var req orchestrator.SessionRequest
	if !h.bind(c, h.schemas.session, &req) {
		return
	}
	sess, err := h.svc.CreateSession(ctx, req)
	if err != nil {
		h.fail(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]string{
		"session_id": sess.ID,
		"created_at": sess.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// bind 校验并解码请求体；失败时已写出 400
func (h *Handler) bind(c *app.RequestContext, sch *jsonschema.Schema, dst any) bool {
	body := c.Request.Body()
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	if detail, ok := validate(sch, body); !ok {
		h.reject(c, consts.StatusBadRequest, "validation failed", detail)
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		h.reject(c, consts.StatusBadRequest, "validation failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) reject(c *app.RequestContext, status int, msg, detail string) {
	c.AbortWithStatusJSON(status, middleware.ErrorBody{Error: msg, Detail: detail})
}

// fail 按错误类别映射 HTTP 状态码
func (h *Handler) fail(ctx context.Context, c *app.RequestContext, err error) {
	var be *orchestrator.BudgetError
	if errors.As(err, &be) {
		h.reject(c, consts.StatusForbidden, "budget exceeded", be.Message)
		return
	}
	switch herrors.KindOf(err) {
	case herrors.KindValidation:
		h.reject(c, consts.StatusBadRequest, "validation failed", err.Error())
	case herrors.KindBudget:
		h.reject(c, consts.StatusForbidden, "budget exceeded", err.Error())
	case herrors.KindNotFound:
		h.reject(c, consts.StatusNotFound, "not found", err.Error())
	case herrors.KindUpstream:
		h.logger.ErrorContext(ctx, "上游服务不可用", "path", string(c.Path()), "error", err)
		h.reject(c, consts.StatusServiceUnavailable, "service unavailable", "")
	default:
		h.logger.ErrorContext(ctx, "请求处理失败", "path", string(c.Path()), "error", err)
		h.reject(c, consts.StatusInternalServerError, "internal server error", "")
	}
}
