package currency

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"house-ai/internal/classify"
)

var amountPattern = regexp.MustCompile(`\d[\d\s,]*\.?\d*`)

// 各币种在文本中的写法（大写后匹配）
var currencyAliases = map[string][]string{
	"UZS": {"UZS", "SO'M", "SOʻM", "SO‘M", "СУМ"},
	"USD": {"USD", "DOLLAR", "ДОЛЛАР", "$"},
	"EUR": {"EUR", "ЕВРО", "€"},
}

// 只提到一个币种时的目标币种
var defaultTarget = map[string]string{"UZS": "USD", "USD": "UZS", "EUR": "UZS"}

// Query 从文本中解析出的换算请求
type Query struct {
	Amount float64
	From   string
	To     string
}

// ParseQuery 取第一个数额；先出现的币种为 from，默认 USD→UZS
func ParseQuery(text string) (Query, bool) {
	m := amountPattern.FindString(text)
	if m == "" {
		return Query{}, false
	}
	clean := strings.NewReplacer(",", "", " ", "", "\t", "", "\n", "").Replace(m)
	amount, err := strconv.ParseFloat(strings.TrimSuffix(clean, "."), 64)
	if err != nil {
		return Query{}, false
	}

	q := Query{Amount: amount, From: "USD", To: "UZS"}
	mentions := mentionedCurrencies(strings.ToUpper(text))
	switch len(mentions) {
	case 0:
	case 1:
		q.From, q.To = mentions[0], defaultTarget[mentions[0]]
	default:
		q.From, q.To = mentions[0], mentions[1]
	}
	return q, true
}

func mentionedCurrencies(upper string) []string {
	type hit struct {
		code string
		pos  int
	}
	var hits []hit
	for code, aliases := range currencyAliases {
		pos := -1
		for _, a := range aliases {
			if i := strings.Index(upper, a); i >= 0 && (pos < 0 || i < pos) {
				pos = i
			}
		}
		if pos >= 0 {
			hits = append(hits, hit{code, pos})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.code
	}
	return out
}

// Answer 处理换算类提问，返回 "💱 a = **b**" 与汇率说明
func (s *Service) Answer(ctx context.Context, text string, lang classify.Language) string {
	q, ok := ParseQuery(text)
	if !ok {
		return classify.Localized(lang,
			"Please specify an amount to convert. For example: '100 USD to UZS'",
			"Iltimos, konvertatsiya qilish uchun miqdorni ko'rsating. Masalan: '100 USD to UZS'",
			"Укажите сумму для конвертации. Например: '100 USD в UZS'",
		)
	}
	rate := s.Rate(ctx, q.From, q.To)
	converted := round2(q.Amount * rate)
	rateLabel := classify.Localized(lang, "Rate", "Kurs", "Курс")
	return fmt.Sprintf("💱 %s = **%s**\n%s: 1 %s = %s %s",
		FormatPrice(q.Amount, q.From), FormatPrice(converted, q.To),
		rateLabel, q.From, humanize.Commaf(rate), q.To)
}
