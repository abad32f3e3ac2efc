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

package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"house-ai/internal/classify"
	"house-ai/internal/model/llm"
	"house-ai/internal/storage/metadata"
	herrors "house-ai/pkg/errors"
	"house-ai/pkg/log"
)

const (
	candidateLimit  = 20
	recommendTopK   = 5
	explanationTemp = 0.7
)

// Engine 基于商品目录的推荐与对比
type Engine struct {
	store  metadata.Store
	logger *log.Logger
}

// NewEngine 创建引擎
func NewEngine(store metadata.Store, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{store: store, logger: logger}
}

// ProductCard 推荐结果中的单个商品
type ProductCard struct {
	Name         string            `json:"name"`
	Brand        string            `json:"brand"`
	Price        float64           `json:"price"`
	Currency     string            `json:"currency"`
	ImageURL     string            `json:"image_url,omitempty"`
	OverallScore float64           `json:"overall_score"`
	Strengths    []string          `json:"strengths"`
	Weaknesses   []string          `json:"weaknesses"`
	BestFor      string            `json:"best_for"`
	Specs        map[string]string `json:"specs"`
}

// RecommendRequest 推荐参数
type RecommendRequest struct {
	Query     string
	Focus     string
	BudgetMin *float64
	BudgetMax *float64
	Language  classify.Language
	Model     llm.Client
}

// Recommendation 推荐结果
type Recommendation struct {
	Products   []ProductCard `json:"products"`
	Message    string        `json:"message"`
	TokensUsed int           `json:"tokens_used"`
	Model      string        `json:"model,omitempty"`
}

// Recommend 拉取候选 → 按关注点加权排序 → 取前 5 → 模型生成说明
func (e *Engine) Recommend(ctx context.Context, req RecommendRequest) (*Recommendation, error) {
	products, err := e.store.ListProducts(ctx, metadata.ProductFilter{
		MinPrice: req.BudgetMin,
		MaxPrice: req.BudgetMax,
		Limit:    candidateLimit,
	})
	if err != nil {
		return nil, herrors.Wrapf(herrors.ErrUnavailable, "查询商品失败: %v", err)
	}
	if len(products) == 0 {
		return &Recommendation{Products: []ProductCard{}, Message: noProductsMessage(req.Language)}, nil
	}

	cards := Rank(products, AdjustWeights(req.Focus), recommendTopK)
	rec := &Recommendation{Products: cards}
	rec.Message, rec.TokensUsed, rec.Model = e.explain(ctx, req, cards)
	return rec, nil
}

// Rank 计算总分并降序取前 k 个，同分保持输入顺序
func Rank(products []*metadata.Product, w Weights, k int) []ProductCard {
	cards := make([]ProductCard, 0, len(products))
	for _, p := range products {
		cards = append(cards, newCard(p, Score(p, w)))
	}
	sort.SliceStable(cards, func(i, j int) bool { return cards[i].OverallScore > cards[j].OverallScore })
	if len(cards) > k {
		cards = cards[:k]
	}
	return cards
}

func newCard(p *metadata.Product, score float64) ProductCard {
	currency := p.Currency
	if currency == "" {
		currency = "UZS"
	}
	return ProductCard{
		Name:         p.Name,
		Brand:        p.Brand,
		Price:        p.Price,
		Currency:     currency,
		ImageURL:     p.ImageURL,
		OverallScore: score,
		Strengths:    Strengths(p),
		Weaknesses:   Weaknesses(p),
		BestFor:      BestFor(p),
		Specs: map[string]string{
			"CPU":     orNA(p.CPU),
			"GPU":     orNA(p.GPU),
			"RAM":     orNA(p.RAM),
			"Storage": orNA(p.Storage),
			"Battery": orNA(p.Battery),
			"Display": orNA(p.Display),
			"Camera":  orNA(p.Camera),
		},
	}
}

func (e *Engine) explain(ctx context.Context, req RecommendRequest, cards []ProductCard) (string, int, string) {
	lines := make([]string, len(cards))
	for i, c := range cards {
		lines[i] = fmt.Sprintf("- %s (%s): Score %s/10, Price: %s %s, Strengths: %s, Best for: %s",
			c.Name, c.Brand, formatNumber(c.OverallScore), humanize.FormatFloat("#,###.", c.Price), c.Currency,
			strings.Join(c.Strengths, ", "), c.BestFor)
	}
	system := "You are a smartphone expert for House Mobile. " +
		"Provide a clear, helpful recommendation based on the " +
		"scored products below. Be conversational and helpful. " +
		classify.LanguageInstruction(req.Language) + "\n\n" +
		"Products:\n" + strings.Join(lines, "\n")
	if req.Focus != "" {
		system += "\nUser's focus: " + req.Focus
	}

	const fallback = "Here are my top recommendations based on your preferences:"
	if req.Model == nil {
		return fallback, 0, ""
	}
	out, err := req.Model.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: req.Query},
		},
		Temperature: explanationTemp,
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "推荐说明生成失败", "error", err)
		return fallback, 0, ""
	}
	return out.Content, out.Usage.TotalTokens, out.Model
}

func noProductsMessage(lang classify.Language) string {
	return classify.Localized(lang,
		"Sorry, I couldn't find any products matching your criteria. Try adjusting your budget or preferences.",
		"Kechirasiz, mezonlaringizga mos mahsulot topilmadi. Byudjetingiz yoki afzalliklaringizni o'zgartirib ko'ring.",
		"Извините, я не нашёл товаров по вашим критериям. Попробуйте изменить бюджет или предпочтения.",
	)
}
