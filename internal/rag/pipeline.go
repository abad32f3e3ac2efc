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

// Package rag 检索增强生成：查询缓存 → 向量化 → 商品/文章并发检索 → Web 回退 → 生成
package rag

import (
	"context"
	"errors"
	"time"

	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/sync/errgroup"

	"house-ai/internal/classify"
	"house-ai/internal/einoext"
	"house-ai/internal/memory"
	"house-ai/internal/model/embedding"
	"house-ai/internal/model/llm"
	"house-ai/internal/search"
	"house-ai/internal/storage/cache"
	herrors "house-ai/pkg/errors"
	"house-ai/pkg/log"
	"house-ai/pkg/metrics"
	"house-ai/pkg/tracing"
)

// 检索来源
const (
	SourceProduct = "product"
	SourceArticle = "article"
	SourceWeb     = "web"
)

// 失败阶段，供调用方用 herrors.StageOf 区分
const (
	StageEmbed    = "embed"
	StageGenerate = "generate"
)

const (
	defaultTopK      = 3
	defaultThreshold = 0.75
	defaultCacheTTL  = 6 * time.Hour
	webResultCount   = 3
	generateTemp     = 0.5
)

// Config 检索参数
type Config struct {
	TopK      int
	Threshold float64
	CacheTTL  time.Duration
}

// Hit 单条检索结果
type Hit struct {
	Source string           `json:"source"`
	Score  float64          `json:"score"`
	Doc    *schema.Document `json:"doc"`
}

// Request 一次 RAG 查询
type Request struct {
	Query    string
	Language classify.Language
	// SystemContext 追加在生成提示词之前（基础人设、语气、个性化）
	SystemContext string
	History       memory.Context
	// Model 本轮路由选中的模型
	Model llm.Client
}

// Answer 生成结果，命中缓存时原样返回
type Answer struct {
	Message       string   `json:"message"`
	Sources       []string `json:"sources"`
	TokensUsed    int      `json:"tokens_used"`
	Model         string   `json:"model"`
	UsedWebSearch bool     `json:"used_web_search"`
	ContextFound  bool     `json:"context_found"`
}

// Pipeline RAG 流水线
type Pipeline struct {
	embedder embedding.Embedder
	products einoretriever.Retriever
	articles einoretriever.Retriever
	web      search.Provider
	cache    cache.Store
	cfg      Config
	logger   *log.Logger
}

// NewPipeline web、store 可为 nil
func NewPipeline(embedder embedding.Embedder, products, articles einoretriever.Retriever, web search.Provider, store cache.Store, cfg Config, logger *log.Logger) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaultThreshold
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if web == nil {
		web = search.Noop{}
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Pipeline{
		embedder: embedder,
		products: products,
		articles: articles,
		web:      web,
		cache:    store,
		cfg:      cfg,
		logger:   logger,
	}
}

// Query 执行完整流水线；任何失败都返回本地化致歉文案与 0 token，不向上抛出原始错误
func (p *Pipeline) Query(ctx context.Context, req Request) (res herrors.Result[*Answer]) {
	ctx, span := tracing.StartStageSpan(ctx, "rag")
	defer func() { tracing.EndSpan(span, res.Err()) }()

	if cached, ok := p.lookup(ctx, req.Query); ok {
		return herrors.Ok(cached)
	}

	vecs, err := p.embedder.Embed(ctx, []string{req.Query})
	if err == nil && len(vecs) == 0 {
		err = errors.New("embedding 返回为空")
	}
	if err != nil {
		p.logger.ErrorContext(ctx, "RAG 向量化失败", "error", err)
		return p.fail(herrors.KindUpstream, herrors.NewStageError(StageEmbed, herrors.Wrap(herrors.ErrUnavailable, err.Error())), req.Language)
	}

	hits := p.retrieve(ctx, req.Query, vecs[0])

	var (
		blocks  []string
		sources []string
		usedWeb bool
	)
	if block := ProductContext(hits[SourceProduct]); block != "" {
		blocks = append(blocks, block)
	}
	if block := ArticleContext(hits[SourceArticle]); block != "" {
		blocks = append(blocks, block)
	}
	if len(blocks) == 0 {
		metrics.RAGWebFallbackTotal.Inc()
		results, err := p.web.Search(ctx, "smartphone "+req.Query, webResultCount)
		if err != nil {
			p.logger.WarnContext(ctx, "Web 搜索回退失败", "provider", p.web.Name(), "error", err)
		}
		if len(results) > 0 {
			blocks = append(blocks, search.BuildContext(results))
			sources = search.Sources(results)
			usedWeb = true
		}
	}

	answer, err := p.generate(ctx, req, joinBlocks(blocks), len(blocks) > 0, usedWeb, sources)
	if err != nil {
		p.logger.ErrorContext(ctx, "RAG 生成失败", "error", err)
		return p.fail(herrors.KindOf(err), herrors.NewStageError(StageGenerate, err), req.Language)
	}
	if answer.Message != "" {
		p.store(ctx, req.Query, answer)
	}
	return herrors.Ok(answer)
}

// retrieve 商品与文章两路检索并发执行；单路失败按空结果处理
func (p *Pipeline) retrieve(ctx context.Context, query string, vec []float64) map[string][]Hit {
	out := map[string][]Hit{}
	var productHits, articleHits []Hit

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		productHits = p.search(gctx, p.products, SourceProduct, query, vec)
		return nil
	})
	g.Go(func() error {
		articleHits = p.search(gctx, p.articles, SourceArticle, query, vec)
		return nil
	})
	_ = g.Wait()

	out[SourceProduct] = productHits
	out[SourceArticle] = articleHits
	return out
}

func (p *Pipeline) search(ctx context.Context, r einoretriever.Retriever, source, query string, vec []float64) []Hit {
	if r == nil {
		return nil
	}
	docs, err := r.Retrieve(ctx, query,
		einoretriever.WithEmbedding(&einoext.PrecomputedEmbedder{Vector: vec}),
		einoretriever.WithTopK(p.cfg.TopK),
		einoretriever.WithScoreThreshold(p.cfg.Threshold),
	)
	if err != nil {
		p.logger.WarnContext(ctx, "向量检索失败", "source", source, "error", err)
		return nil
	}
	hits := make([]Hit, 0, len(docs))
	for _, d := range docs {
		// 后端未必遵守 WithScoreThreshold，这里再过滤一次
		if d == nil || d.Score() < p.cfg.Threshold {
			continue
		}
		hits = append(hits, Hit{Source: source, Score: d.Score(), Doc: d})
	}
	return hits
}

func (p *Pipeline) lookup(ctx context.Context, query string) (*Answer, bool) {
	if p.cache == nil {
		return nil, false
	}
	var cached Answer
	err := p.cache.Get(ctx, cache.RAGKey(query), &cached)
	switch {
	case err == nil:
		metrics.CacheRequestsTotal.WithLabelValues("rag", "hit").Inc()
		p.logger.DebugContext(ctx, "RAG 缓存命中", "query", truncate(query, 50))
		return &cached, true
	case !errors.Is(err, cache.ErrMiss):
		p.logger.WarnContext(ctx, "读取 RAG 缓存失败", "error", err)
	}
	metrics.CacheRequestsTotal.WithLabelValues("rag", "miss").Inc()
	return nil, false
}

func (p *Pipeline) store(ctx context.Context, query string, a *Answer) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Set(ctx, cache.RAGKey(query), a, p.cfg.CacheTTL); err != nil {
		p.logger.WarnContext(ctx, "写入 RAG 缓存失败", "error", err)
	}
}

func (p *Pipeline) fail(kind herrors.Kind, err error, lang classify.Language) herrors.Result[*Answer] {
	return herrors.Fail(kind, err, &Answer{Message: Apology(lang), Sources: []string{}})
}

// Apology 流水线失败时的本地化致歉
func Apology(lang classify.Language) string {
	return classify.Localized(lang,
		"I'm sorry, I encountered an error while processing your request. Please try again.",
		"Kechirasiz, so'rovingizni qayta ishlashda xatolik yuz berdi. Qayta urinib ko'ring.",
		"Извините, произошла ошибка при обработке запроса. Попробуйте снова.",
	)
}
