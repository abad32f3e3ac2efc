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

// devops 启动 Eino Dev 调试服务并注册分类编排（correct → language → intent → emotion），供 IDE 插件连接后可视化调试。
// 使用：go run ./cmd/devops -config configs/api.yaml；配置不可用时仅启用规则分类。
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino-ext/devops"

	"house-ai/internal/app"
	"house-ai/internal/classify"
	"house-ai/internal/model"
	"house-ai/internal/model/llm"
	"house-ai/pkg/config"
)

// fallbackModel 加载配置中的默认 LLM 作为低置信度回退；失败时返回 nil
func fallbackModel(ctx context.Context, path string) (llm.Client, float64) {
	cfg, err := config.LoadWithModel(path)
	if err != nil {
		log.Printf("[eino dev] 未加载配置，仅使用规则分类: %v", err)
		return nil, config.Default().Chat.ConfidenceThreshold
	}
	logger, err := app.NewLogger(cfg)
	if err != nil {
		return nil, cfg.Chat.ConfidenceThreshold
	}
	reg, err := model.NewRegistry(ctx, cfg, logger)
	if err != nil {
		log.Printf("[eino dev] 模型初始化失败，仅使用规则分类: %v", err)
		return nil, cfg.Chat.ConfidenceThreshold
	}
	return reg.Default, cfg.Chat.ConfidenceThreshold
}

func main() {
	configPath := flag.String("config", "configs/api.yaml", "配置文件路径")
	flag.Parse()
	ctx := context.Background()

	// 必须在任何 Compile 之前初始化
	if err := devops.Init(ctx); err != nil {
		log.Fatalf("[eino dev] init failed: %v", err)
	}

	m, threshold := fallbackModel(ctx, *configPath)
	if _, err := classify.NewCascade(m, threshold, nil).Compile(ctx); err != nil {
		log.Fatalf("[eino dev] compile %s: %v", classify.GraphName, err)
	}

	log.Printf("[eino dev] graph %s registered; server listening on 127.0.0.1:52538", classify.GraphName)
	log.Println("[eino dev] press Ctrl+C to exit")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	log.Println("[eino dev] shutting down")
}
