// Package classify 对用户消息做意图、语言、情绪分类：规则优先，置信度不足时回退到模型
package classify

import "strings"

// Intent 意图标签
type Intent string

const (
	IntentRecommendation   Intent = "recommendation"
	IntentComparison       Intent = "comparison"
	IntentProductDetail    Intent = "product_detail"
	IntentBlogSearch       Intent = "blog_search"
	IntentTrendInquiry     Intent = "trend_inquiry"
	IntentBudgetConversion Intent = "budget_conversion"
	IntentPlatformHelp     Intent = "platform_help"
	IntentGeneralChat      Intent = "general_chat"
)

// Intents 全部意图，顺序即规则表顺序
var Intents = []Intent{
	IntentRecommendation, IntentComparison, IntentProductDetail, IntentBlogSearch,
	IntentTrendInquiry, IntentBudgetConversion, IntentPlatformHelp, IntentGeneralChat,
}

// Language 语言标签
type Language string

const (
	LanguageUzbek   Language = "uz"
	LanguageRussian Language = "ru"
	LanguageEnglish Language = "en"
)

// Emotion 情绪标签
type Emotion string

const (
	EmotionHappy      Emotion = "happy"
	EmotionConfused   Emotion = "confused"
	EmotionFrustrated Emotion = "frustrated"
	EmotionAngry      Emotion = "angry"
	EmotionExcited    Emotion = "excited"
	EmotionNeutral    Emotion = "neutral"
)

// Emotions 全部情绪
var Emotions = []Emotion{
	EmotionHappy, EmotionConfused, EmotionFrustrated, EmotionAngry, EmotionExcited, EmotionNeutral,
}

// Result 分类结果
type Result[L ~string] struct {
	Label      L       `json:"label"`
	Confidence float64 `json:"confidence"`
}

// ParseIntent 解析模型或客户端给出的意图名；空格视作下划线
func ParseIntent(s string) (Intent, bool) {
	s = strings.ReplaceAll(normalizeLabel(s), " ", "_")
	for _, in := range Intents {
		if string(in) == s {
			return in, true
		}
	}
	return "", false
}

// ParseLanguage 解析语言代码
func ParseLanguage(s string) (Language, bool) {
	switch Language(normalizeLabel(s)) {
	case LanguageUzbek:
		return LanguageUzbek, true
	case LanguageRussian:
		return LanguageRussian, true
	case LanguageEnglish:
		return LanguageEnglish, true
	}
	return "", false
}

// ParseEmotion 解析情绪名
func ParseEmotion(s string) (Emotion, bool) {
	s = normalizeLabel(s)
	for _, e := range Emotions {
		if string(e) == s {
			return e, true
		}
	}
	return "", false
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(s), ".\"'`"))
}
