package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"house-ai/internal/classify"
	"house-ai/internal/model/llm/llmtest"
	"house-ai/internal/storage/metadata"
)

func seedStore(t *testing.T) *metadata.MemoryStore {
	t.Helper()
	s := metadata.NewMemoryStore()
	ctx := context.Background()
	for _, p := range []*metadata.Product{
		{ID: "p1", Name: "Galaxy S24", Brand: "Samsung", Price: 11_000_000, CPU: "Exynos 2400", Battery: "4000 mAh",
			GamingScore: 8.5, CameraScore: 9, ValueScore: 6, TrendScore: 9},
		{ID: "p2", Name: "Redmi Note 13", Brand: "Xiaomi", Price: 3_500_000, CPU: "Snapdragon 685", Battery: "5000 mAh",
			GamingScore: 5, CameraScore: 6, ValueScore: 9, TrendScore: 7},
		{ID: "p3", Name: "ROG Phone 8", Brand: "Asus", Price: 14_000_000, CPU: "Snapdragon 8 Gen 3", Battery: "5500 mAh",
			GamingScore: 10, CameraScore: 7, ValueScore: 5, TrendScore: 9},
	} {
		require.NoError(t, s.UpsertProduct(ctx, p))
	}
	return s
}

func TestAdjustWeights(t *testing.T) {
	assert.Equal(t, BaseWeights, AdjustWeights(""))
	assert.Equal(t, BaseWeights, AdjustWeights("battery"))
	assert.Equal(t, 0.45, AdjustWeights("Gaming phone").Gaming)
	assert.Equal(t, 0.45, AdjustWeights("yaxshi kamera").Camera)
	assert.Equal(t, 0.55, AdjustWeights("arzon").Value)
	assert.Equal(t, 0.40, AdjustWeights("популярный").Trend)
}

func TestScoreAndCardAttributes(t *testing.T) {
	p := &metadata.Product{ValueScore: 8, GamingScore: 9, CameraScore: 4, TrendScore: 6, Battery: "5000 mAh"}
	assert.Equal(t, 7.15, Score(p, BaseWeights))
	assert.Equal(t, []string{"Gaming performance: 9/10", "Value for money: 8/10", "Large battery capacity"}, Strengths(p))
	assert.Equal(t, []string{"Camera quality: 4/10"}, Weaknesses(p))
	assert.Equal(t, "Heavy gaming and performance tasks", BestFor(p))

	plain := &metadata.Product{ValueScore: 6, GamingScore: 6, CameraScore: 6, TrendScore: 6}
	assert.Equal(t, []string{"Balanced performance"}, Strengths(plain))
	assert.Equal(t, []string{"No significant weaknesses"}, Weaknesses(plain))
	assert.Equal(t, "Balanced daily use", BestFor(plain))
}

func TestRecommend(t *testing.T) {
	engine := NewEngine(seedStore(t), nil)
	model := llmtest.NewFake("ROG Phone 8 is the gaming pick.")
	maxPrice := 15_000_000.0

	rec, err := engine.Recommend(context.Background(), RecommendRequest{
		Query: "best gaming phone", Focus: FocusGaming, BudgetMax: &maxPrice,
		Language: classify.LanguageEnglish, Model: model,
	})
	require.NoError(t, err)
	require.Len(t, rec.Products, 3)
	assert.Equal(t, "ROG Phone 8", rec.Products[0].Name)
	assert.Equal(t, "Galaxy S24", rec.Products[1].Name)
	assert.Equal(t, "N/A", rec.Products[0].Specs["GPU"])
	assert.Equal(t, "UZS", rec.Products[0].Currency)
	assert.Equal(t, "ROG Phone 8 is the gaming pick.", rec.Message)
	assert.Positive(t, rec.TokensUsed)

	call := model.Calls()[0]
	assert.Equal(t, 0.7, call.Temperature)
	assert.Contains(t, call.Messages[0].Content, "Price: 14,000,000 UZS")
	assert.Contains(t, call.Messages[0].Content, "User's focus: gaming")
	assert.Equal(t, "best gaming phone", call.Messages[1].Content)
}

func TestRecommendBudgetFilterAndFallback(t *testing.T) {
	engine := NewEngine(seedStore(t), nil)
	maxPrice := 4_000_000.0
	rec, err := engine.Recommend(context.Background(), RecommendRequest{
		Query: "arzon telefon", BudgetMax: &maxPrice, Language: classify.LanguageUzbek,
		Model: &llmtest.Fake{Err: errors.New("down")},
	})
	require.NoError(t, err)
	require.Len(t, rec.Products, 1)
	assert.Equal(t, "Redmi Note 13", rec.Products[0].Name)
	assert.Equal(t, "Here are my top recommendations based on your preferences:", rec.Message)
	assert.Zero(t, rec.TokensUsed)

	minPrice := 50_000_000.0
	rec, err = engine.Recommend(context.Background(), RecommendRequest{BudgetMin: &minPrice, Language: classify.LanguageRussian})
	require.NoError(t, err)
	assert.Empty(t, rec.Products)
	assert.Contains(t, rec.Message, "Извините")
}

func TestCompare(t *testing.T) {
	engine := NewEngine(seedStore(t), nil)
	model := llmtest.NewFake("Pick the Galaxy for cameras.")

	cmp, err := engine.Compare(context.Background(), []string{"galaxy s24", "Redmi Note"}, classify.LanguageEnglish, model)
	require.NoError(t, err)
	require.NotNil(t, cmp.Table)
	assert.Equal(t, []string{"Galaxy S24", "Redmi Note 13"}, cmp.Table.Products)
	require.Len(t, cmp.Table.Rows, 12)

	rows := map[string]ComparisonRow{}
	for _, r := range cmp.Table.Rows {
		rows[r.Category] = r
	}
	assert.Equal(t, "CPU", cmp.Table.Rows[0].Category)
	assert.Equal(t, "Price", cmp.Table.Rows[11].Category)
	assert.Empty(t, rows["CPU"].Winner)
	assert.Equal(t, "N/A", rows["GPU"].Values["Galaxy S24"])
	assert.Equal(t, "Galaxy S24", rows["Gaming Score"].Winner)
	assert.Equal(t, "Redmi Note 13", rows["Value Score"].Winner)
	assert.Equal(t, "Redmi Note 13", rows["Price"].Winner)
	assert.Equal(t, "8.5", rows["Gaming Score"].Values["Galaxy S24"])

	assert.Equal(t, "Pick the Galaxy for cameras.", cmp.Message)
	assert.Equal(t, cmp.Message, cmp.Table.FinalRecommendation)
	system := model.Calls()[0].Messages[0].Content
	assert.Contains(t, system, "- Price: Galaxy S24: 11000000, Redmi Note 13: 3500000 (Winner: Redmi Note 13)")
}

func TestCompareNotFound(t *testing.T) {
	engine := NewEngine(seedStore(t), nil)
	model := llmtest.NewFake("unused")

	cmp, err := engine.Compare(context.Background(), []string{"Galaxy S24", "Nokia 3310"}, classify.LanguageEnglish, model)
	require.NoError(t, err)
	assert.Nil(t, cmp.Table)
	assert.Equal(t, "Sorry, I couldn't find all the products to compare: Galaxy S24, Nokia 3310. Please check the product names.", cmp.Message)

	cmp, err = engine.Compare(context.Background(), []string{"Galaxy", "Galaxy S24"}, classify.LanguageEnglish, model)
	require.NoError(t, err)
	assert.Nil(t, cmp.Table)
	assert.Zero(t, model.CallCount())
}

func TestCompareVerdictFallback(t *testing.T) {
	engine := NewEngine(seedStore(t), nil)
	cmp, err := engine.Compare(context.Background(), []string{"ROG", "Redmi"}, classify.LanguageEnglish, &llmtest.Fake{Err: errors.New("down")})
	require.NoError(t, err)
	assert.Equal(t, "Please review the comparison table above.", cmp.Message)
	assert.Zero(t, cmp.TokensUsed)
}

func TestExtractors(t *testing.T) {
	assert.Equal(t, []string{"iPhone 15", "Galaxy S24"}, ExtractProductNames("Compare iPhone 15 vs Galaxy S24"))
	assert.Equal(t, []string{"iPhone 15", "Samsung S24"}, ExtractProductNames("iPhone 15 yoki Samsung S24 qaysi yaxshi?"))
	assert.Equal(t, []string{"Redmi Note 13", "Poco X6"}, ExtractProductNames("Redmi Note 13 или Poco X6, какой лучше?"))
	assert.Len(t, ExtractProductNames("which is better?"), 0)

	assert.Equal(t, FocusGaming, ExtractFocus("best phone for PUBG"))
	assert.Equal(t, FocusCamera, ExtractFocus("yaxshi rasm oladigan"))
	assert.Equal(t, FocusBudget, ExtractFocus("дешевый телефон"))
	assert.Empty(t, ExtractFocus("hello"))

	assert.Equal(t, "iphone", ExtractBrand("iPhone 15 narxi"))
	assert.Equal(t, "redmi", ExtractBrand("Redmi Note 13"))
	assert.Empty(t, ExtractBrand("phone under 3 million"))
}
