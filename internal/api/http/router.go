package http

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"

	"house-ai/internal/api/http/middleware"
)

// Router 路由与中间件装配
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
	jwt        *middleware.JWTAuth
	extra      []app.HandlerFunc
}

// NewRouter 创建路由
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	return &Router{handler: handler, middleware: mw}
}

// SetJWT 启用可选 JWT 身份
func (r *Router) SetJWT(j *middleware.JWTAuth) {
	r.jwt = j
}

// Use 追加全局中间件（如链路追踪），须在 Build 之前调用
func (r *Router) Use(mw ...app.HandlerFunc) {
	r.extra = append(r.extra, mw...)
}

// Build 创建 Hertz 实例并注册路由
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	all := append([]config.Option{
		server.WithHostPorts(addr),
		server.WithExitWaitTime(5 * time.Second),
	}, opts...)
	h := server.New(all...)
	r.register(h)
	return h
}

func (r *Router) register(h *server.Hertz) {
	h.Use(r.extra...)
	h.Use(r.middleware.Recovery(), r.middleware.RequestLog(), r.middleware.CORS())
	if r.jwt != nil {
		h.Use(r.jwt.Identity())
	}
	h.Use(r.middleware.RateLimit())

	h.GET("/", r.handler.Root)
	h.GET("/health", r.handler.Health)
	h.GET("/metrics", r.handler.Metrics)

	api := h.Group("/api")
	api.POST("/chat", r.handler.Chat)
	api.POST("/chat/stream", r.handler.ChatStream)
	api.POST("/recommend", r.handler.Recommend)
	api.POST("/compare", r.handler.Compare)
	api.POST("/session", r.handler.Session)
	// 预检请求由 CORS 中间件直接应答
	api.OPTIONS("/*path", func(ctx context.Context, c *app.RequestContext) {})
}
