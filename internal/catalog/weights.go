// Package catalog 商品推荐与对比引擎
package catalog

import (
	"math"
	"strconv"
	"strings"

	"house-ai/internal/storage/metadata"
)

// 关注点
const (
	FocusGaming = "gaming"
	FocusCamera = "camera"
	FocusBudget = "budget"
	FocusTrend  = "trend"
)

// Weights 四项评分的权重
type Weights struct {
	Value  float64 `json:"value"`
	Gaming float64 `json:"gaming"`
	Camera float64 `json:"camera"`
	Trend  float64 `json:"trend"`
}

// BaseWeights 无特定关注点时的权重
var BaseWeights = Weights{Value: 0.40, Gaming: 0.25, Camera: 0.20, Trend: 0.15}

// 按顺序匹配，先命中者生效
var focusWeights = []struct {
	keywords []string
	weights  Weights
}{
	{[]string{"gaming", "game", "o'yin", "игр"}, Weights{Value: 0.25, Gaming: 0.45, Camera: 0.15, Trend: 0.15}},
	{[]string{"camera", "photo", "kamera", "камер"}, Weights{Value: 0.25, Gaming: 0.15, Camera: 0.45, Trend: 0.15}},
	{[]string{"budget", "cheap", "arzon", "дешев"}, Weights{Value: 0.55, Gaming: 0.15, Camera: 0.15, Trend: 0.15}},
	{[]string{"trend", "popular", "mashhur", "популярн"}, Weights{Value: 0.25, Gaming: 0.20, Camera: 0.15, Trend: 0.40}},
}

// AdjustWeights 根据关注点（自由文本）调整权重
func AdjustWeights(focus string) Weights {
	focus = strings.ToLower(focus)
	if focus == "" {
		return BaseWeights
	}
	for _, fw := range focusWeights {
		for _, kw := range fw.keywords {
			if strings.Contains(focus, kw) {
				return fw.weights
			}
		}
	}
	return BaseWeights
}

// Score 加权总分，保留两位小数
func Score(p *metadata.Product, w Weights) float64 {
	s := w.Value*p.ValueScore + w.Gaming*p.GamingScore + w.Camera*p.CameraScore + w.Trend*p.TrendScore
	return math.Round(s*100) / 100
}

type namedScore struct {
	name  string
	score float64
}

// Strengths 最高的两项评分（≥7）与大电池
func Strengths(p *metadata.Product) []string {
	scores := []namedScore{
		{"Gaming performance", p.GamingScore},
		{"Camera quality", p.CameraScore},
		{"Value for money", p.ValueScore},
		{"Trend popularity", p.TrendScore},
	}
	// 稳定排序，同分保持原顺序
	for i := 1; i < len(scores); i++ {
		for j := i; j > 0 && scores[j].score > scores[j-1].score; j-- {
			scores[j], scores[j-1] = scores[j-1], scores[j]
		}
	}
	var out []string
	for _, s := range scores[:2] {
		if s.score >= 7 {
			out = append(out, s.name+": "+formatNumber(s.score)+"/10")
		}
	}
	if strings.Contains(p.Battery, "5000") {
		out = append(out, "Large battery capacity")
	}
	if len(out) == 0 {
		return []string{"Balanced performance"}
	}
	return out
}

// Weaknesses 低于 5 分的项
func Weaknesses(p *metadata.Product) []string {
	var out []string
	for _, s := range []namedScore{
		{"Gaming performance", p.GamingScore},
		{"Camera quality", p.CameraScore},
		{"Value for money", p.ValueScore},
	} {
		if s.score < 5 {
			out = append(out, s.name+": "+formatNumber(s.score)+"/10")
		}
	}
	if len(out) == 0 {
		return []string{"No significant weaknesses"}
	}
	return out
}

// BestFor 最适合的使用场景
func BestFor(p *metadata.Product) string {
	switch {
	case p.GamingScore >= 8:
		return "Heavy gaming and performance tasks"
	case p.CameraScore >= 8:
		return "Photography and content creation"
	case p.ValueScore >= 8:
		return "Best value for everyday use"
	default:
		return "Balanced daily use"
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
