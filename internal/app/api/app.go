// Package api 装配并运行 HTTP（Hertz）与可选的 gRPC 服务
package api

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	hconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"google.golang.org/grpc"

	apigrpc "house-ai/internal/api/grpc"
	"house-ai/internal/api/http"
	"house-ai/internal/api/http/middleware"
	"house-ai/internal/app"
	"house-ai/pkg/config"
)

// Server API 进程：HTTP Router、可选 gRPC 与后台任务
type Server struct {
	app        *app.App
	router     *http.Router
	hertz      *server.Hertz
	grpcServer *grpcRun
	otel       provider.OtelProvider
}

// grpcRun 持有 gRPC Server 与 Listener，用于 GracefulStop 时关闭
type grpcRun struct {
	srv *grpc.Server
	lis net.Listener
}

// GracefulStop 停止接收新请求并等待进行中的调用结束
func (g *grpcRun) GracefulStop() {
	if g.srv != nil {
		g.srv.GracefulStop()
	}
	if g.lis != nil {
		_ = g.lis.Close()
	}
}

// NewServer 基于依赖容器装配路由与中间件
func NewServer(a *app.App) (*Server, error) {
	cfg := a.Config
	handler, err := http.NewHandler(a.Orchestrator, http.Info{Name: cfg.Chat.AppName, Version: cfg.Chat.AppVersion}, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 处理器失败: %w", err)
	}
	router := http.NewRouter(handler, middleware.NewMiddleware(cfg.API, a.Logger))

	if cfg.API.Middleware.Auth && cfg.API.Middleware.JWTKey != "" {
		timeout := config.ParseDuration(cfg.API.Middleware.JWTTimeout, 24*time.Hour)
		jwtAuth, err := middleware.NewJWTAuth([]byte(cfg.API.Middleware.JWTKey), timeout)
		if err != nil {
			a.Logger.Warn("JWT 初始化失败，所有请求按匿名处理", "error", err)
		} else {
			router.SetJWT(jwtAuth)
			a.Logger.Info("JWT 身份识别已启用")
		}
	}
	return &Server{app: a, router: router}, nil
}

// Run 启动后台任务、gRPC 与 HTTP；阻塞直到 HTTP 服务退出
func (s *Server) Run(ctx context.Context, addr string) error {
	cfg := s.app.Config
	logger := s.app.Logger
	logger.Info("API 服务启动", "addr", addr)

	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(logger.Output()),
		hertzslog.WithLevel(logger.LevelVar()),
	))

	var opts []hconfig.Option
	if timeout := config.ParseDuration(cfg.API.Timeout, 0); timeout > 0 {
		opts = append(opts, server.WithReadTimeout(timeout))
	}
	// 全局 TracerProvider 由 app.New 安装，这里只挂 Hertz 的 server tracer
	if cfg.Monitoring.Tracing.Enable {
		if ep := cfg.Monitoring.Tracing.MetricsEndpoint; ep != "" {
			s.otel = newMetricsProvider(cfg.Monitoring.Tracing)
			logger.Info("OTLP 指标导出已启用", "endpoint", ep)
		}
		tracerOpt, tcfg := hertztracing.NewServerTracer()
		opts = append(opts, tracerOpt)
		s.router.Use(hertztracing.ServerMiddleware(tcfg))
		logger.Info("链路追踪已启用", "service_name", cfg.Monitoring.Tracing.ServiceName)
	}
	s.hertz = s.router.Build(addr, opts...)

	if cfg.API.Grpc.Enable && cfg.API.Grpc.Port > 0 {
		gs, err := startGRPC(s.app, cfg.API.Grpc.Port)
		if err != nil {
			logger.Warn("gRPC 服务启动失败", "error", err)
		} else {
			s.grpcServer = gs
			logger.Info("gRPC 服务已启动", "port", cfg.API.Grpc.Port)
		}
	}
	if err := s.app.Start(ctx); err != nil {
		logger.Warn("后台任务启动失败", "error", err)
	}
	return s.hertz.Run()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (s *Server) Shutdown(ctx context.Context) error {
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
	if s.otel != nil {
		_ = s.otel.Shutdown(ctx)
	}
	if s.hertz != nil {
		if err := s.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	return s.app.Close(ctx)
}

// startGRPC 创建并启动 gRPC 服务（在 goroutine 中 Serve）
func startGRPC(a *app.App, port int) (*grpcRun, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	svc := apigrpc.NewServer(a.Orchestrator, a.Logger)
	srv := grpc.NewServer(grpc.UnaryInterceptor(svc.UnaryInterceptor()))
	svc.Register(srv)
	go func() {
		_ = srv.Serve(lis)
	}()
	return &grpcRun{srv: srv, lis: lis}, nil
}

// newMetricsProvider 只导出指标；TracerProvider 已由 app.New 安装
func newMetricsProvider(tc config.TracingConfig) provider.OtelProvider {
	name := tc.ServiceName
	if name == "" {
		name = "house-ai"
	}
	opts := []provider.Option{
		provider.WithServiceName(name),
		provider.WithExportEndpoint(tc.MetricsEndpoint),
		provider.WithEnableTracing(false),
		provider.WithEnableMetrics(true),
	}
	if tc.Insecure {
		opts = append(opts, provider.WithInsecure())
	}
	return provider.NewOpenTelemetryProvider(opts...)
}
