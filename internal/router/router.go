// Package router 按意图、置信度与复杂度选择模型档位
package router

import (
	"strings"
	"unicode/utf8"

	"house-ai/internal/classify"
)

// Tier 模型档位
type Tier string

const (
	TierDefault  Tier = "default"
	TierAdvanced Tier = "advanced"
)

// Complexity 查询复杂度
type Complexity string

const (
	ComplexityNone Complexity = ""
	ComplexityLow  Complexity = "low"
	ComplexityHigh Complexity = "high"
)

// 超过该长度（字符）的消息视为高复杂度
const longMessageRunes = 600

// Router 模型路由；零值使用 classify.DefaultThreshold
type Router struct {
	threshold float64
}

// New 创建路由，threshold<=0 时使用默认阈值
func New(threshold float64) Router {
	if threshold <= 0 {
		threshold = classify.DefaultThreshold
	}
	return Router{threshold: threshold}
}

// Select 对比、产品详情且置信度不足，或复杂度为 high 时使用高级档位
func (r Router) Select(intent classify.Intent, confidence float64, complexity Complexity) Tier {
	threshold := r.threshold
	if threshold <= 0 {
		threshold = classify.DefaultThreshold
	}
	switch {
	case (intent == classify.IntentComparison || intent == classify.IntentProductDetail) && confidence < threshold:
		return TierAdvanced
	case complexity == ComplexityHigh:
		return TierAdvanced
	default:
		return TierDefault
	}
}

// EstimateComplexity 粗略估计复杂度：长消息或一次提及三个以上对象的对比视为 high
func EstimateComplexity(text string) Complexity {
	if utf8.RuneCountInString(text) > longMessageRunes {
		return ComplexityHigh
	}
	lower := strings.ToLower(text)
	seps := 0
	for _, sep := range []string{" vs ", " versus ", " yoki ", " или ", ","} {
		seps += strings.Count(lower, sep)
	}
	if seps >= 2 && strings.Count(lower, "?") <= 1 {
		return ComplexityHigh
	}
	return ComplexityLow
}
