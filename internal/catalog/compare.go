package catalog

import (
	"context"
	"fmt"
	"strings"

	"house-ai/internal/classify"
	"house-ai/internal/model/llm"
	"house-ai/internal/storage/metadata"
	herrors "house-ai/pkg/errors"
)

// ComparisonRow 对比表的一行；Values 以商品名为键
type ComparisonRow struct {
	Category string            `json:"category"`
	Values   map[string]string `json:"values"`
	Winner   string            `json:"winner,omitempty"`
}

// ComparisonTable 对比表
type ComparisonTable struct {
	Products            []string        `json:"products"`
	Rows                []ComparisonRow `json:"rows"`
	FinalRecommendation string          `json:"final_recommendation"`
	Reasoning           string          `json:"reasoning"`
}

// Comparison 对比结果；商品不足两个时 Table 为 nil
type Comparison struct {
	Table      *ComparisonTable `json:"comparison"`
	Message    string           `json:"message"`
	TokensUsed int              `json:"tokens_used"`
	Model      string           `json:"model,omitempty"`
}

type winnerRule int

const (
	noWinner winnerRule = iota
	higherWins
	lowerWins
)

type category struct {
	label string
	value func(p *metadata.Product) string
	score func(p *metadata.Product) float64
	rule  winnerRule
}

func specRow(label string, f func(p *metadata.Product) string) category {
	return category{label: label, value: func(p *metadata.Product) string { return orNA(f(p)) }}
}

func scoreRow(label string, rule winnerRule, f func(p *metadata.Product) float64) category {
	return category{label: label, value: func(p *metadata.Product) string { return formatNumber(f(p)) }, score: f, rule: rule}
}

var categories = []category{
	specRow("CPU", func(p *metadata.Product) string { return p.CPU }),
	specRow("GPU", func(p *metadata.Product) string { return p.GPU }),
	specRow("RAM", func(p *metadata.Product) string { return p.RAM }),
	specRow("Storage", func(p *metadata.Product) string { return p.Storage }),
	specRow("Display", func(p *metadata.Product) string { return p.Display }),
	specRow("Camera", func(p *metadata.Product) string { return p.Camera }),
	specRow("Battery", func(p *metadata.Product) string { return p.Battery }),
	scoreRow("Gaming Score", higherWins, func(p *metadata.Product) float64 { return p.GamingScore }),
	scoreRow("Camera Score", higherWins, func(p *metadata.Product) float64 { return p.CameraScore }),
	scoreRow("Value Score", higherWins, func(p *metadata.Product) float64 { return p.ValueScore }),
	scoreRow("Trend Score", higherWins, func(p *metadata.Product) float64 { return p.TrendScore }),
	scoreRow("Price", lowerWins, func(p *metadata.Product) float64 { return p.Price }),
}

// Compare 按名称查找商品（同一商品只计一次），构建对比表并生成结论
func (e *Engine) Compare(ctx context.Context, names []string, lang classify.Language, model llm.Client) (*Comparison, error) {
	products, err := e.findAll(ctx, names)
	if err != nil {
		return nil, err
	}
	if len(products) < 2 {
		return &Comparison{Message: notFoundMessage(names, lang)}, nil
	}

	table := BuildTable(products)
	msg, tokens, modelName := e.verdict(ctx, products, table.Rows, lang, model)
	table.FinalRecommendation = msg
	table.Reasoning = msg
	return &Comparison{Table: table, Message: msg, TokensUsed: tokens, Model: modelName}, nil
}

func (e *Engine) findAll(ctx context.Context, names []string) ([]*metadata.Product, error) {
	seen := make(map[string]bool, len(names))
	var out []*metadata.Product
	for _, n := range names {
		p, err := e.store.FindProductByName(ctx, n)
		if err != nil {
			return nil, herrors.Wrapf(herrors.ErrUnavailable, "查询商品 %q 失败: %v", n, err)
		}
		if p == nil || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out, nil
}

// BuildTable 逐类别列出各商品取值，评分类高者胜，价格低者胜，同值取先出现者
func BuildTable(products []*metadata.Product) *ComparisonTable {
	t := &ComparisonTable{Products: make([]string, len(products))}
	for i, p := range products {
		t.Products[i] = p.Name
	}
	for _, c := range categories {
		row := ComparisonRow{Category: c.label, Values: make(map[string]string, len(products))}
		for _, p := range products {
			row.Values[p.Name] = c.value(p)
		}
		row.Winner = winner(c, products)
		t.Rows = append(t.Rows, row)
	}
	return t
}

func winner(c category, products []*metadata.Product) string {
	if c.rule == noWinner || len(products) == 0 {
		return ""
	}
	best := products[0]
	for _, p := range products[1:] {
		switch {
		case c.rule == higherWins && c.score(p) > c.score(best):
			best = p
		case c.rule == lowerWins && c.score(p) < c.score(best):
			best = p
		}
	}
	return best.Name
}

func (e *Engine) verdict(ctx context.Context, products []*metadata.Product, rows []ComparisonRow, lang classify.Language, model llm.Client) (string, int, string) {
	var sb strings.Builder
	for i, row := range rows {
		if i > 0 {
			sb.WriteByte('\n')
		}
		parts := make([]string, len(products))
		for j, p := range products {
			parts[j] = p.Name + ": " + row.Values[p.Name]
		}
		fmt.Fprintf(&sb, "- %s: %s", row.Category, strings.Join(parts, ", "))
		if row.Winner != "" {
			fmt.Fprintf(&sb, " (Winner: %s)", row.Winner)
		}
	}
	names := make([]string, len(products))
	for i, p := range products {
		names[i] = p.Name
	}

	const fallback = "Please review the comparison table above."
	if model == nil {
		return fallback, 0, ""
	}
	out, err := model.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You are a smartphone expert for House Mobile. " +
				"Based on the comparison data below, provide a clear " +
				"final recommendation. Explain which phone is better " +
				"for different use cases. Be specific and helpful.\n" +
				classify.LanguageInstruction(lang) + "\n\nComparison:\n" + sb.String()},
			{Role: llm.RoleUser, Content: "Compare these phones and tell me which one to buy: " + strings.Join(names, ", ")},
		},
		Temperature: explanationTemp,
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "对比结论生成失败", "error", err)
		return fallback, 0, ""
	}
	return out.Content, out.Usage.TotalTokens, out.Model
}

func notFoundMessage(names []string, lang classify.Language) string {
	joined := strings.Join(names, ", ")
	return classify.Localized(lang,
		"Sorry, I couldn't find all the products to compare: "+joined+". Please check the product names.",
		"Kechirasiz, taqqoslash uchun barcha mahsulotlarni topa olmadim: "+joined+". Iltimos, mahsulot nomlarini tekshiring.",
		"Извините, не удалось найти все продукты для сравнения: "+joined+". Проверьте названия.",
	)
}
