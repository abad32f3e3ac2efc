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

// Package app 进程级容器：按配置一次性构造全部依赖，并负责关闭
package app

import (
	"context"
	"errors"
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"house-ai/internal/budget"
	"house-ai/internal/catalog"
	"house-ai/internal/classify"
	"house-ai/internal/currency"
	"house-ai/internal/einoext"
	"house-ai/internal/ingest"
	"house-ai/internal/memory"
	"house-ai/internal/model"
	"house-ai/internal/model/embedding"
	"house-ai/internal/orchestrator"
	"house-ai/internal/rag"
	"house-ai/internal/router"
	"house-ai/internal/search"
	"house-ai/internal/storage/cache"
	"house-ai/internal/storage/metadata"
	"house-ai/internal/storage/vector"
	"house-ai/pkg/config"
	"house-ai/pkg/log"
	"house-ai/pkg/secrets"
	"house-ai/pkg/tracing"
)

// App API 进程的依赖容器
type App struct {
	Config       *config.Config
	Logger       *log.Logger
	Metadata     metadata.Store
	Cache        cache.Store
	Vectors      vector.Store
	Models       *model.Registry
	Cascade      *classify.Cascade
	Orchestrator *orchestrator.Orchestrator
	Warmer       *currency.Warmer

	tracer *sdktrace.TracerProvider
}

// NewLogger 按 log 配置创建日志
func NewLogger(cfg *config.Config) (*log.Logger, error) {
	logger, err := log.NewLogger(&log.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return logger, nil
}

// New 解析密钥引用后依次创建存储、模型、各子系统与编排器；失败时释放已创建的资源
func New(ctx context.Context, cfg *config.Config, logger *log.Logger) (a *App, err error) {
	if cfg == nil {
		return nil, errors.New("配置为空")
	}
	if logger == nil {
		if logger, err = NewLogger(cfg); err != nil {
			return nil, err
		}
	}
	a = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	if err = resolveSecrets(ctx, cfg); err != nil {
		return nil, err
	}
	if cfg.Monitoring.Tracing.Enable {
		a.tracer, err = tracing.InitTracer(tracing.OTelConfig{
			ServiceName:    cfg.Monitoring.Tracing.ServiceName,
			ExportEndpoint: cfg.Monitoring.Tracing.ExportEndpoint,
			Insecure:       cfg.Monitoring.Tracing.Insecure,
		})
		if err != nil {
			return nil, fmt.Errorf("初始化 tracing 失败: %w", err)
		}
	}

	if a.Metadata, err = metadata.NewStore(ctx, cfg.Storage.Metadata); err != nil {
		return nil, fmt.Errorf("初始化元数据存储失败: %w", err)
	}
	if a.Cache, err = cache.NewCache(cfg.Storage.Cache); err != nil {
		return nil, fmt.Errorf("初始化缓存失败: %w", err)
	}
	if a.Vectors, err = newVectorStore(cfg.Storage.Vector); err != nil {
		return nil, err
	}
	if a.Models, err = model.NewRegistry(ctx, cfg, logger); err != nil {
		return nil, fmt.Errorf("初始化模型失败: %w", err)
	}
	if a.Models.Embedder == nil {
		return nil, errors.New("未配置 model.defaults.embedding")
	}

	web, err := search.NewProvider(cfg.Search)
	if err != nil {
		return nil, fmt.Errorf("初始化 Web 搜索失败: %w", err)
	}
	pipeline, err := a.newRAG(ctx, web)
	if err != nil {
		return nil, err
	}

	a.Cascade = classify.NewCascade(a.Models.Default, cfg.Chat.ConfidenceThreshold, logger)
	fx := currency.NewService(cfg.Currency, a.Cache, logger)
	a.Warmer = currency.NewWarmer(fx, cfg.Currency.RefreshCron, logger)

	mem := memory.NewManager(
		memory.NewCacheLog(a.Cache, cfg.Chat.SessionMemoryMaxMessages, config.ParseDuration(cfg.Chat.SessionTTL, 0)),
		memory.NewMetadataStore(a.Metadata),
		a.Models.Default,
		memory.Config{
			MaxContextMessages:      cfg.Chat.MaxContextMessages,
			SummarizeTokenThreshold: cfg.Chat.SummarizeTokenThreshold,
		},
		logger,
	)

	a.Orchestrator = orchestrator.New(orchestrator.Deps{
		Cascade:  a.Cascade,
		Router:   router.New(cfg.Chat.ConfidenceThreshold),
		Budget:   budget.NewLedger(a.Cache, cfg.Chat.DailyTokenBudget, logger),
		Memory:   mem,
		RAG:      pipeline,
		Catalog:  catalog.NewEngine(a.Metadata, logger),
		Currency: fx,
		Search:   web,
		Models:   a.Models,
		Store:    a.Metadata,
		Cache:    a.Cache,
		Logger:   logger,
	}, orchestrator.Options{
		ComplexityRouting: cfg.Chat.ComplexityRouting,
		ProductCacheTTL:   config.ParseDuration(cfg.RAG.ProductCacheTTL, 0),
		CompareCacheTTL:   config.ParseDuration(cfg.RAG.CompareCacheTTL, 0),
	})
	return a, nil
}

func (a *App) newRAG(ctx context.Context, web search.Provider) (*rag.Pipeline, error) {
	cfg := a.Config
	eino := &embedding.EinoAdapter{Embedder: a.Models.Embedder}
	products, err := einoext.NewRetriever(ctx, cfg.Storage.Vector, a.Vectors, einoext.RetrieverOptions{
		Index: cfg.RAG.ProductIndex, TopK: cfg.RAG.TopK, Threshold: cfg.RAG.Threshold, Embedder: eino,
		ReturnFields: rag.MetaFields,
	})
	if err != nil {
		return nil, fmt.Errorf("商品检索器: %w", err)
	}
	articles, err := einoext.NewRetriever(ctx, cfg.Storage.Vector, a.Vectors, einoext.RetrieverOptions{
		Index: cfg.RAG.ArticleIndex, TopK: cfg.RAG.TopK, Threshold: cfg.RAG.Threshold, Embedder: eino,
		ReturnFields: rag.MetaFields,
	})
	if err != nil {
		return nil, fmt.Errorf("文章检索器: %w", err)
	}
	return rag.NewPipeline(a.Models.Embedder, products, articles, web, a.Cache, rag.Config{
		TopK:      cfg.RAG.TopK,
		Threshold: cfg.RAG.Threshold,
		CacheTTL:  config.ParseDuration(cfg.RAG.CacheTTL, 0),
	}, a.Logger), nil
}

// Start 启动后台任务（汇率预热）
func (a *App) Start(ctx context.Context) error {
	if a.Warmer == nil {
		return nil
	}
	return a.Warmer.Start(ctx)
}

// Close 按创建的逆序释放资源
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Warmer != nil {
		a.Warmer.Stop()
	}
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.Metadata != nil {
		errs = append(errs, a.Metadata.Close())
	}
	if a.tracer != nil {
		errs = append(errs, a.tracer.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// NewIngest 为离线索引构造依赖：元数据存储、向量索引与 Embedding 模型，不需要 LLM
func NewIngest(ctx context.Context, cfg *config.Config, logger *log.Logger) (*ingest.Service, func() error, error) {
	if err := resolveSecrets(ctx, cfg); err != nil {
		return nil, nil, err
	}
	if cfg.Model.Defaults.Embedding == "" {
		return nil, nil, errors.New("未配置 model.defaults.embedding")
	}
	emb, err := model.NewEmbedder(cfg.Model.Embedding, cfg.Model.Defaults.Embedding)
	if err != nil {
		return nil, nil, fmt.Errorf("Embedding 模型: %w", err)
	}
	meta, err := metadata.NewStore(ctx, cfg.Storage.Metadata)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化元数据存储失败: %w", err)
	}
	vecs, err := newVectorStore(cfg.Storage.Vector)
	if err != nil {
		_ = meta.Close()
		return nil, nil, err
	}
	eino := &embedding.EinoAdapter{Embedder: emb}
	products, err := einoext.NewIndexer(ctx, cfg.Storage.Vector, vecs, cfg.RAG.ProductIndex, eino)
	if err != nil {
		_ = meta.Close()
		return nil, nil, fmt.Errorf("商品索引: %w", err)
	}
	articles, err := einoext.NewIndexer(ctx, cfg.Storage.Vector, vecs, cfg.RAG.ArticleIndex, eino)
	if err != nil {
		_ = meta.Close()
		return nil, nil, fmt.Errorf("文章索引: %w", err)
	}
	return ingest.NewService(meta, products, articles, eino, logger), meta.Close, nil
}

// newVectorStore memory 后端需要进程内 vector.Store；redis 由 eino-ext 组件直接连接
func newVectorStore(cfg config.VectorConfig) (vector.Store, error) {
	if cfg.Type != "" && cfg.Type != "memory" {
		return nil, nil
	}
	s, err := vector.NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化向量存储失败: %w", err)
	}
	return s, nil
}

func resolveSecrets(ctx context.Context, cfg *config.Config) error {
	store, err := secrets.NewStore(cfg.Secrets)
	if err != nil {
		return fmt.Errorf("初始化密钥存储失败: %w", err)
	}
	if err := secrets.ResolveProviders(ctx, store, cfg); err != nil {
		return fmt.Errorf("解析密钥失败: %w", err)
	}
	return nil
}
