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

// Package orchestrator 单轮对话编排：注入检查 → 额度 → 分类 → 记忆 → 分支处理 → 保存 → 摘要 → 计费
package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"house-ai/internal/budget"
	"house-ai/internal/catalog"
	"house-ai/internal/classify"
	"house-ai/internal/currency"
	"house-ai/internal/memory"
	"house-ai/internal/model"
	"house-ai/internal/model/llm"
	"house-ai/internal/rag"
	"house-ai/internal/router"
	"house-ai/internal/search"
	"house-ai/internal/storage/cache"
	"house-ai/internal/storage/metadata"
	"house-ai/pkg/auth"
	herrors "house-ai/pkg/errors"
	"house-ai/pkg/log"
	"house-ai/pkg/metrics"
	"house-ai/pkg/tracing"
)

const listingLimit = 5

// Options 编排参数
type Options struct {
	// ComplexityRouting 为 true 时按消息复杂度升级模型档位
	ComplexityRouting bool
	ProductCacheTTL   time.Duration
	CompareCacheTTL   time.Duration
}

// Deps 编排依赖；Search、Cache 可为 nil
type Deps struct {
	Cascade  *classify.Cascade
	Router   router.Router
	Budget   *budget.Ledger
	Memory   *memory.Manager
	RAG      *rag.Pipeline
	Catalog  *catalog.Engine
	Currency *currency.Service
	Search   search.Provider
	Models   *model.Registry
	Store    metadata.Store
	Cache    cache.Store
	Logger   *log.Logger
}

// Orchestrator 对话编排器，并发安全
type Orchestrator struct {
	Deps
	opts Options
}

// New 创建编排器
func New(deps Deps, opts Options) *Orchestrator {
	if deps.Search == nil {
		deps.Search = search.Noop{}
	}
	if deps.Logger == nil {
		deps.Logger = log.Nop()
	}
	if opts.ProductCacheTTL <= 0 {
		opts.ProductCacheTTL = 24 * time.Hour
	}
	if opts.CompareCacheTTL <= 0 {
		opts.CompareCacheTTL = 12 * time.Hour
	}
	return &Orchestrator{Deps: deps, opts: opts}
}

// turn 单轮处理中的中间状态
type turn struct {
	req       ChatRequest
	sessionID string
	userID    string
	cls       *classify.Classification
	history   memory.Context
	system    string
	model     llm.Client
	outcome   string

	message    string
	products   []catalog.ProductCard
	comparison *catalog.ComparisonTable
	sources    []string
	tokens     int
	modelName  string
}

func (t *turn) lang() classify.Language { return t.cls.Language.Label }

func (t *turn) intent() classify.Intent { return t.cls.Intent.Label }

func (t *turn) emotion() classify.Emotion { return t.cls.Emotion.Label }

func (t *turn) text() string { return t.cls.Corrected }

func (t *turn) response() *ChatResponse {
	sources := t.sources
	if sources == nil {
		sources = []string{}
	}
	return &ChatResponse{
		Message:    t.message,
		SessionID:  t.sessionID,
		Intent:     t.intent(),
		Emotion:    t.emotion(),
		Language:   t.lang(),
		Products:   t.products,
		Comparison: t.comparison,
		Sources:    sources,
		TokensUsed: t.tokens,
		Model:      t.modelName,
	}
}

// Chat 处理一轮对话；任何错误或 panic 都转换为本地化的兜底回复，会话 ID 保持不变
func (o *Orchestrator) Chat(ctx context.Context, req ChatRequest) (resp *ChatResponse) {
	start := time.Now()
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	ctx, span := tracing.StartTurnSpan(ctx, sessionID, false)
	intentLabel, outcome := "none", "ok"
	var turnErr error

	defer func() {
		if r := recover(); r != nil {
			turnErr = fmt.Errorf("panic: %v", r)
			o.Logger.ErrorContext(ctx, "对话处理 panic", "session_id", sessionID, "panic", r, "stack", string(debug.Stack()))
			resp = &ChatResponse{Message: FailureMessage(req.Language), SessionID: sessionID, Sources: []string{}}
			outcome = "error"
		}
		metrics.TurnDuration.WithLabelValues(intentLabel).Observe(time.Since(start).Seconds())
		metrics.TurnTotal.WithLabelValues(intentLabel, outcome).Inc()
		tracing.EndSpan(span, turnErr)
	}()

	t, early := o.prepare(ctx, req, sessionID)
	if early != nil {
		outcome = "rejected"
		return early
	}
	intentLabel = string(t.intent())

	if err := o.answer(ctx, t); err != nil {
		turnErr = err
		outcome = "error"
		o.Logger.ErrorContext(ctx, "对话处理失败", "session_id", sessionID, "intent", intentLabel, "error", err)
		return &ChatResponse{Message: FailureMessage(t.lang()), SessionID: sessionID, Sources: []string{}}
	}
	o.finish(ctx, t)
	outcome = t.outcome
	return t.response()
}

// prepare 注入检查、额度检查、分类、加载记忆与画像；需要提前结束时返回 early
func (o *Orchestrator) prepare(ctx context.Context, req ChatRequest, sessionID string) (*turn, *ChatResponse) {
	if classify.IsInjection(req.Message) {
		o.Logger.WarnContext(ctx, "检测到提示词注入", "session_id", sessionID)
		return nil, &ChatResponse{Message: classify.InjectionRefusal, SessionID: sessionID, Sources: []string{}}
	}

	t := &turn{req: req, sessionID: sessionID, userID: auth.ResolveUserID(ctx, req.UserID), outcome: "ok"}

	if t.userID != "" && o.Budget != nil {
		if allowed, _ := o.Budget.Check(ctx, t.userID); !allowed {
			lang := req.Language
			if lang == "" {
				lang = classify.LanguageEnglish
			}
			return nil, &ChatResponse{Message: budget.ExceededMessage(lang), SessionID: sessionID, Sources: []string{}}
		}
	}

	o.ensureSession(ctx, sessionID, t.userID)

	cctx, span := tracing.StartStageSpan(ctx, "classify")
	t.cls = o.Cascade.Classify(cctx, req.Message, req.Language)
	tracing.EndSpan(span, nil)

	if o.Memory != nil {
		t.history = o.Memory.GetContext(ctx, sessionID)
	}
	t.system = SystemPrompt(t.lang(), t.emotion(), Personalization(o.profile(ctx, t.userID)))

	complexity := router.ComplexityNone
	if o.opts.ComplexityRouting {
		complexity = router.EstimateComplexity(t.text())
	}
	t.model = o.Models.Pick(o.Router.Select(t.intent(), t.cls.Intent.Confidence, complexity))
	return t, nil
}

// ensureSession 首条消息时创建会话，已存在时为空操作
func (o *Orchestrator) ensureSession(ctx context.Context, sessionID, userID string) {
	if o.Store == nil {
		return
	}
	if _, err := o.Store.CreateSession(ctx, &metadata.Session{ID: sessionID, UserID: userID}); err != nil {
		o.Logger.WarnContext(ctx, "创建会话失败", "session_id", sessionID, "error", err)
	}
}

// profile 个性化画像，失败时忽略
func (o *Orchestrator) profile(ctx context.Context, userID string) *metadata.UserProfile {
	if userID == "" || o.Store == nil {
		return nil
	}
	p, err := o.Store.GetUserProfile(ctx, userID)
	if err != nil {
		o.Logger.DebugContext(ctx, "读取用户画像失败", "user_id", userID, "error", err)
		return nil
	}
	return p
}

// answer 按意图分支生成回答
func (o *Orchestrator) answer(ctx context.Context, t *turn) error {
	switch t.intent() {
	case classify.IntentRecommendation:
		return o.recommend(ctx, t)
	case classify.IntentComparison:
		if names := catalog.ExtractProductNames(t.text()); len(names) >= 2 {
			return o.compare(ctx, t, names)
		}
		return o.retrieve(ctx, t)
	case classify.IntentBudgetConversion:
		t.message = o.Currency.Answer(ctx, t.text(), t.lang())
		return nil
	case classify.IntentProductDetail, classify.IntentBlogSearch, classify.IntentTrendInquiry:
		return o.retrieve(ctx, t)
	case classify.IntentPlatformHelp:
		return o.complete(ctx, t, PlatformSystemPrompt(t.lang(), t.emotion()))
	default:
		return o.complete(ctx, t, t.system)
	}
}

func (o *Orchestrator) recommend(ctx context.Context, t *turn) error {
	rec, err := o.Catalog.Recommend(ctx, catalog.RecommendRequest{
		Query:    t.text(),
		Focus:    catalog.ExtractFocus(t.text()),
		Language: t.lang(),
		Model:    t.model,
	})
	if err != nil {
		o.Logger.WarnContext(ctx, "推荐失败，降级为直接回答", "error", err)
		return o.degrade(ctx, t, noteProductDBDown)
	}
	t.message, t.products, t.tokens, t.modelName = rec.Message, rec.Products, rec.TokensUsed, rec.Model
	t.message += o.listings(ctx, t)
	return nil
}

// listings 平台在售商品补充，失败时忽略
func (o *Orchestrator) listings(ctx context.Context, t *turn) string {
	if o.Store == nil {
		return ""
	}
	items, err := o.Store.SearchListings(ctx, catalog.ExtractBrand(t.text()), listingLimit)
	if err != nil {
		o.Logger.DebugContext(ctx, "查询在售商品失败", "error", err)
		return ""
	}
	return ListingsNote(t.lang(), items)
}

func (o *Orchestrator) compare(ctx context.Context, t *turn, names []string) error {
	cmp, err := o.Catalog.Compare(ctx, names, t.lang(), t.model)
	if err != nil {
		o.Logger.WarnContext(ctx, "对比失败，降级为直接回答", "error", err)
		return o.degrade(ctx, t, noteDBDown)
	}
	t.message, t.comparison, t.tokens, t.modelName = cmp.Message, cmp.Table, cmp.TokensUsed, cmp.Model
	return nil
}

func (o *Orchestrator) retrieve(ctx context.Context, t *turn) error {
	res := o.RAG.Query(ctx, rag.Request{
		Query:         t.text(),
		Language:      t.lang(),
		SystemContext: t.system,
		History:       t.history,
		Model:         t.model,
	})
	if !res.IsOk() && herrors.StageOf(res.Err()) == rag.StageEmbed {
		o.Logger.WarnContext(ctx, "RAG 不可用，降级为直接回答", "error", res.Err())
		return o.degrade(ctx, t, noteDBDown)
	}
	if !res.IsOk() {
		t.outcome = "degraded"
	}
	a := res.Value()
	t.message, t.sources, t.tokens, t.modelName = a.Message, a.Sources, a.TokensUsed, a.Model
	return nil
}

// degrade 子系统失败时：Web 搜索片段 + 说明，由默认档模型直接回答
func (o *Orchestrator) degrade(ctx context.Context, t *turn, note string) error {
	t.outcome = "degraded"
	webCtx := ""
	results, err := o.Search.Search(ctx, t.text(), search.DefaultCount)
	if err != nil {
		o.Logger.ErrorContext(ctx, "降级 Web 搜索失败", "error", err)
	}
	if len(results) > 0 {
		webCtx = webResultsHeader + search.BuildContext(results)
		t.sources = search.Sources(results)
	}
	t.products = []catalog.ProductCard{}
	msgs := memory.BuildMessages(t.system+"\n"+note+webCtx, t.history, t.text())
	out, err := o.Models.Default.Complete(ctx, llm.Request{Messages: msgs})
	if err != nil {
		return fmt.Errorf("降级回答失败: %w", err)
	}
	t.message, t.tokens, t.modelName = out.Content, out.Usage.TotalTokens, out.Model
	return nil
}

func (o *Orchestrator) complete(ctx context.Context, t *turn, system string) error {
	out, err := t.model.Complete(ctx, llm.Request{Messages: memory.BuildMessages(system, t.history, t.text())})
	if err != nil {
		return err
	}
	t.message, t.tokens, t.modelName = out.Content, out.Usage.TotalTokens, out.Model
	return nil
}

// finish 保存本轮消息、检查摘要并记账；均为尽力而为
func (o *Orchestrator) finish(ctx context.Context, t *turn) {
	if o.Memory != nil {
		if err := o.Memory.SaveExchange(ctx, t.sessionID, t.req.Message, t.message); err != nil {
			o.Logger.WarnContext(ctx, "保存对话失败", "session_id", t.sessionID, "error", err)
		}
		if _, err := o.Memory.CheckAndSummarize(ctx, t.sessionID); err != nil {
			o.Logger.WarnContext(ctx, "会话摘要失败", "session_id", t.sessionID, "error", err)
		}
	}
	if o.Budget != nil && t.userID != "" && t.tokens > 0 {
		name := t.modelName
		if name == "" {
			name = t.model.Model()
		}
		o.Budget.Track(ctx, t.userID, t.tokens, name)
	}
}
