package classify

import (
	"math"
	"regexp"
)

// 规则分类的默认结果
const (
	defaultIntentConfidence   = 0.9
	defaultEmotionConfidence  = 0.8
	defaultLanguageConfidence = 0.7
	weakUzbekConfidence       = 0.6
	maxRuleConfidence         = 0.95
)

// matchConfidence 命中 n 条模式时的置信度
func matchConfidence(n int) float64 {
	return math.Min(0.5+0.15*float64(n), maxRuleConfidence)
}

// scoreTable 对整张表逐条评估；最高置信度胜出，相同时取表中靠前的标签
func scoreTable[L ~string](table []labelPatterns[L], text string) (Result[L], bool) {
	var best Result[L]
	found := false
	for _, row := range table {
		n := countMatches(row.patterns, text)
		if n == 0 {
			continue
		}
		c := matchConfidence(n)
		if !found || c > best.Confidence {
			best = Result[L]{Label: row.label, Confidence: c}
			found = true
		}
	}
	return best, found
}

func countMatches(patterns []*regexp.Regexp, text string) int {
	n := 0
	for _, p := range patterns {
		if p.MatchString(text) {
			n++
		}
	}
	return n
}

// DetectIntent 基于规则的意图分类；无命中时为 general_chat
func DetectIntent(text string) Result[Intent] {
	if r, ok := scoreTable(intentTable, text); ok {
		return r
	}
	return Result[Intent]{Label: IntentGeneralChat, Confidence: defaultIntentConfidence}
}

// DetectEmotion 基于关键词的情绪检测；无命中时为 neutral
func DetectEmotion(text string) Result[Emotion] {
	if r, ok := scoreTable(emotionTable, text); ok {
		return r
	}
	return Result[Emotion]{Label: EmotionNeutral, Confidence: defaultEmotionConfidence}
}

// DetectLanguage 基于字符集比例与关键词打分的语言检测
func DetectLanguage(text string) Result[Language] {
	uz := countMatches(uzbekMarkers, text)
	ru := countMatches(russianMarkers, text)
	ratio := CyrillicRatio(text)

	switch {
	case ratio > 0.3 || ru >= 2:
		c := math.Min(0.6+0.1*float64(ru)+0.3*ratio, maxRuleConfidence)
		return Result[Language]{Label: LanguageRussian, Confidence: c}
	case uz >= 2:
		return Result[Language]{Label: LanguageUzbek, Confidence: math.Min(0.6+0.1*float64(uz), maxRuleConfidence)}
	case uz == 1:
		return Result[Language]{Label: LanguageUzbek, Confidence: weakUzbekConfidence}
	}
	return Result[Language]{Label: LanguageEnglish, Confidence: defaultLanguageConfidence}
}

// CyrillicRatio 俄文字母占全部拉丁/俄文字母的比例
func CyrillicRatio(text string) float64 {
	cyr, alpha := 0, 0
	for _, r := range text {
		switch {
		case (r >= 'а' && r <= 'я') || (r >= 'А' && r <= 'Я') || r == 'ё' || r == 'Ё':
			cyr++
			alpha++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			alpha++
		}
	}
	if alpha == 0 {
		alpha = 1
	}
	return float64(cyr) / float64(alpha)
}
