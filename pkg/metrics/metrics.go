package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		TurnDuration, TurnTotal,
		LLMTokensTotal, LLMFallbackTotal,
		CacheRequestsTotal, RAGWebFallbackTotal,
		ClassifierFallbackTotal, BudgetRejectionsTotal, CostUSDTotal,
		RateLimitWaitSeconds,
	)
}

// TurnDuration 单轮对话耗时（秒）
var TurnDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "house_turn_duration_seconds",
		Help:    "单轮对话耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"intent"},
)

// TurnTotal 对话轮次总数（按结果）
var TurnTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "house_turn_total",
		Help: "对话轮次总数",
	},
	[]string{"intent", "outcome"}, // ok | degraded | rejected | error
)

// LLMTokensTotal LLM 调用 token 数
var LLMTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "house_llm_tokens_total",
		Help: "LLM 调用 token 总数",
	},
	[]string{"model", "direction"}, // input | output
)

// LLMFallbackTotal 主 Provider 失败后切换到备用 Provider 的次数
var LLMFallbackTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "house_llm_fallback_total",
		Help: "LLM 备用 Provider 调用次数",
	},
	[]string{"op"}, // complete | stream
)

// CacheRequestsTotal 应用层缓存命中统计
var CacheRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "house_cache_requests_total",
		Help: "应用层缓存请求数",
	},
	[]string{"cache", "result"}, // hit | miss
)

// RAGWebFallbackTotal 向量检索为空时回退到 Web 搜索的次数
var RAGWebFallbackTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "house_rag_web_fallback_total",
		Help: "RAG Web 搜索回退次数",
	},
)

// ClassifierFallbackTotal 规则分类置信度不足时调用模型分类的次数
var ClassifierFallbackTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "house_classifier_fallback_total",
		Help: "模型分类回退次数",
	},
	[]string{"kind", "outcome"}, // kind: language | intent | emotion；outcome: accepted | rejected | error
)

// BudgetRejectionsTotal 因每日 token 额度用尽被拒绝的请求数
var BudgetRejectionsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "house_budget_rejections_total",
		Help: "额度用尽拒绝次数",
	},
)

// CostUSDTotal 估算花费（美元）
var CostUSDTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "house_cost_usd_total",
		Help: "估算花费（美元）",
	},
	[]string{"model"},
)

// RateLimitWaitSeconds 限流等待耗时
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "house_ratelimit_wait_seconds",
		Help:    "限流等待耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"kind", "provider"},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
