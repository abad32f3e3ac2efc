package catalog

import (
	"regexp"
	"strings"
	"unicode"
)

var focusKeywords = []struct {
	focus    string
	keywords []string
}{
	{FocusGaming, []string{"gaming", "game", "o'yin", "игр", "pubg", "genshin"}},
	{FocusCamera, []string{"camera", "photo", "kamera", "камер", "selfie", "rasm"}},
	{FocusBudget, []string{"budget", "cheap", "arzon", "дешев", "affordable", "byudjet"}},
	{FocusTrend, []string{"trend", "popular", "mashhur", "популярн", "trending"}},
}

var knownBrands = []string{
	"samsung", "apple", "iphone", "xiaomi", "redmi", "realme", "poco",
	"huawei", "oppo", "vivo", "oneplus", "google", "pixel", "sony",
	"motorola", "nokia", "tecno", "infinix", "itel",
}

var (
	comparisonSplit = regexp.MustCompile(`(?i)\s+(?:vs\.?|versus|yoki|или|and|va|bilan|с|compared?\s+to)\s+`)
	comparisonNoise = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])(?:compare|taqqosla|сравни|which|qaysi|какой|is|better|yaxshi|лучше)(?:$|[^\p{L}\p{N}_])`)
)

// ExtractFocus 从消息中识别关注点，未识别时为空
func ExtractFocus(text string) string {
	lower := strings.ToLower(text)
	for _, fk := range focusKeywords {
		for _, kw := range fk.keywords {
			if strings.Contains(lower, kw) {
				return fk.focus
			}
		}
	}
	return ""
}

// ExtractBrand 消息中提到的第一个已知品牌/系列
func ExtractBrand(text string) string {
	lower := strings.ToLower(text)
	for _, b := range knownBrands {
		if strings.Contains(lower, b) {
			return b
		}
	}
	return ""
}

// ExtractProductNames 按 "vs / yoki / или ..." 切分出待对比的商品名
func ExtractProductNames(text string) []string {
	var names []string
	for _, part := range comparisonSplit.Split(text, -1) {
		part = stripNoise(part)
		part = strings.Trim(part, " ?!.,;:")
		if len([]rune(part)) > 2 {
			names = append(names, part)
		}
	}
	return names
}

// stripNoise 删除填充词；相邻词共用分隔符，需重复替换
func stripNoise(s string) string {
	for {
		next := comparisonNoise.ReplaceAllStringFunc(s, func(m string) string {
			lead, trail := "", ""
			r := []rune(m)
			if len(r) > 0 && !isWordRune(r[0]) {
				lead = string(r[0])
			}
			if len(r) > 1 && !isWordRune(r[len(r)-1]) {
				trail = string(r[len(r)-1])
			}
			return lead + trail
		})
		if next == s {
			return strings.Join(strings.Fields(s), " ")
		}
		s = next
	}
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
