package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"house-ai/internal/app"
	"house-ai/internal/app/api"
	"house-ai/pkg/config"
)

func main() {
	configPath := flag.String("config", "configs/api.yaml", "配置文件路径（同目录 model.yaml 会被合并）")
	flag.Parse()

	cfg, err := config.LoadWithModel(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	logger, err := app.NewLogger(cfg)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}

	ctx := context.Background()
	container, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}

	server, err := api.NewServer(container)
	if err != nil {
		log.Fatalf("创建 API 服务失败: %v", err)
	}

	addr := ":8100"
	if cfg.API.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	}

	go func() {
		if err := server.Run(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("API 服务异常退出", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("关闭失败", "error", err)
	}
	logger.Info("API 服务已关闭")
}
