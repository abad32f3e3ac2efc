package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"house-ai/internal/budget"
	"house-ai/internal/catalog"
	"house-ai/internal/classify"
	"house-ai/internal/router"
	"house-ai/internal/storage/cache"
	"house-ai/internal/storage/metadata"
	"house-ai/pkg/auth"
	herrors "house-ai/pkg/errors"
	"house-ai/pkg/metrics"
)

// BudgetError 专用接口额度用尽；Message 为本地化提示
type BudgetError struct {
	Message string
}

func (e *BudgetError) Error() string { return e.Message }

func (e *BudgetError) Unwrap() error { return herrors.ErrBudgetExceeded }

// Recommend 推荐接口；整个响应按归一化查询缓存
func (o *Orchestrator) Recommend(ctx context.Context, req RecommendRequest) (*RecommendResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, herrors.Wrap(herrors.ErrInvalidArg, "query 不能为空")
	}
	lang := o.endpointLanguage(ctx, req.Language, req.Query)
	userID := auth.ResolveUserID(ctx, req.UserID)
	if err := o.checkBudget(ctx, userID, lang); err != nil {
		return nil, err
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	key := cache.ProductKey(req.Query)
	var cached RecommendResponse
	if o.cacheGet(ctx, "product", key, &cached) {
		cached.SessionID = sessionID
		return &cached, nil
	}

	focus := req.Focus
	if focus == "" {
		focus = catalog.ExtractFocus(req.Query)
	}
	rec, err := o.Catalog.Recommend(ctx, catalog.RecommendRequest{
		Query:     req.Query,
		Focus:     focus,
		BudgetMin: req.BudgetMin,
		BudgetMax: req.BudgetMax,
		Language:  lang,
		Model:     o.Models.Pick(router.TierDefault),
	})
	if err != nil {
		return nil, err
	}
	resp := &RecommendResponse{
		Message:    rec.Message,
		Products:   rec.Products,
		SessionID:  sessionID,
		Language:   lang,
		TokensUsed: rec.TokensUsed,
	}
	o.cacheSet(ctx, key, resp, o.opts.ProductCacheTTL)
	o.record(ctx, sessionID, userID, req.Query, rec.Message, rec.TokensUsed, rec.Model)
	return resp, nil
}

// Compare 对比接口；缓存键与名称顺序、大小写无关
func (o *Orchestrator) Compare(ctx context.Context, req CompareRequest) (*CompareResponse, error) {
	names := make([]string, 0, len(req.ProductNames))
	for _, n := range req.ProductNames {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) < 2 {
		return nil, herrors.Wrap(herrors.ErrInvalidArg, "至少需要两个产品名称")
	}
	lang := o.endpointLanguage(ctx, req.Language, strings.Join(names, " "))
	userID := auth.ResolveUserID(ctx, req.UserID)
	if err := o.checkBudget(ctx, userID, lang); err != nil {
		return nil, err
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	key := cache.CompareKey(names)
	var cached CompareResponse
	if o.cacheGet(ctx, "compare", key, &cached) {
		cached.SessionID = sessionID
		return &cached, nil
	}

	cmp, err := o.Catalog.Compare(ctx, names, lang, o.Models.Pick(router.TierAdvanced))
	if err != nil {
		return nil, err
	}
	resp := &CompareResponse{
		Message:    cmp.Message,
		Comparison: cmp.Table,
		SessionID:  sessionID,
		Language:   lang,
		TokensUsed: cmp.TokensUsed,
	}
	// 未找到足够产品时不缓存
	if cmp.Table != nil {
		o.cacheSet(ctx, key, resp, o.opts.CompareCacheTTL)
	}
	o.record(ctx, sessionID, userID, "Compare: "+strings.Join(names, " vs "), cmp.Message, cmp.TokensUsed, cmp.Model)
	return resp, nil
}

// CreateSession 创建会话；匿名会话使用客户端给出的 ID
func (o *Orchestrator) CreateSession(ctx context.Context, req SessionRequest) (*metadata.Session, error) {
	if o.Store == nil {
		return nil, herrors.Wrap(herrors.ErrUnavailable, "会话存储未配置")
	}
	userID := auth.ResolveUserID(ctx, req.UserID)
	id := req.AnonymousSessionID
	if userID != "" || id == "" {
		id = uuid.NewString()
	}
	sess, err := o.Store.CreateSession(ctx, &metadata.Session{ID: id, UserID: userID, AnonymousID: req.AnonymousSessionID})
	if err != nil {
		return nil, fmt.Errorf("创建会话失败: %w: %w", herrors.ErrUnavailable, err)
	}
	return sess, nil
}

func (o *Orchestrator) endpointLanguage(ctx context.Context, lang classify.Language, text string) classify.Language {
	if lang != "" {
		return lang
	}
	return o.Cascade.Language(ctx, text).Label
}

func (o *Orchestrator) checkBudget(ctx context.Context, userID string, lang classify.Language) error {
	if o.Budget == nil || userID == "" {
		return nil
	}
	if allowed, _ := o.Budget.Check(ctx, userID); !allowed {
		return &BudgetError{Message: budget.ExceededMessage(lang)}
	}
	return nil
}

func (o *Orchestrator) cacheGet(ctx context.Context, name, key string, dest any) bool {
	if o.Cache == nil {
		return false
	}
	err := o.Cache.Get(ctx, key, dest)
	switch {
	case err == nil:
		metrics.CacheRequestsTotal.WithLabelValues(name, "hit").Inc()
		return true
	case errors.Is(err, cache.ErrMiss):
		metrics.CacheRequestsTotal.WithLabelValues(name, "miss").Inc()
	default:
		metrics.CacheRequestsTotal.WithLabelValues(name, "error").Inc()
		o.Logger.WarnContext(ctx, "读取缓存失败", "key", key, "error", err)
	}
	return false
}

func (o *Orchestrator) cacheSet(ctx context.Context, key string, v any, ttl time.Duration) {
	if o.Cache == nil {
		return
	}
	if err := o.Cache.Set(ctx, key, v, ttl); err != nil {
		o.Logger.WarnContext(ctx, "写入缓存失败", "key", key, "error", err)
	}
}

// record 专用接口的结果同样写入会话记忆并计费
func (o *Orchestrator) record(ctx context.Context, sessionID, userID, userMsg, reply string, tokens int, model string) {
	if o.Memory != nil && reply != "" {
		if err := o.Memory.SaveExchange(ctx, sessionID, userMsg, reply); err != nil {
			o.Logger.WarnContext(ctx, "保存对话失败", "session_id", sessionID, "error", err)
		}
	}
	if o.Budget != nil && userID != "" && tokens > 0 {
		o.Budget.Track(ctx, userID, tokens, model)
	}
}
