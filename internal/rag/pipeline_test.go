package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"house-ai/internal/classify"
	"house-ai/internal/einoext"
	"house-ai/internal/memory"
	"house-ai/internal/model/llm"
	"house-ai/internal/model/llm/llmtest"
	"house-ai/internal/search"
	"house-ai/internal/storage/cache"
	"house-ai/internal/storage/vector"
	herrors "house-ai/pkg/errors"
)

type stubEmbedder struct {
	vec []float64
	err error
}

func (e stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = e.vec
	}
	return out, nil
}
func (e stubEmbedder) Dimension() int { return len(e.vec) }
func (e stubEmbedder) Model() string  { return "stub" }

type stubWeb struct {
	results []search.Result
	calls   int
}

func (w *stubWeb) Search(ctx context.Context, q string, count int) ([]search.Result, error) {
	w.calls++
	return w.results, nil
}
func (w *stubWeb) Name() string { return "stub" }

type fixture struct {
	store    *vector.MemoryStore
	cache    *cache.MemoryStore
	web      *stubWeb
	pipeline *Pipeline
}

func newFixture(t *testing.T, emb stubEmbedder) *fixture {
	t.Helper()
	store := vector.NewMemoryStore()
	products, err := einoext.NewMemoryRetriever(&einoext.MemoryRetrieverConfig{Store: store, Index: "products"})
	require.NoError(t, err)
	articles, err := einoext.NewMemoryRetriever(&einoext.MemoryRetrieverConfig{Store: store, Index: "articles"})
	require.NoError(t, err)
	f := &fixture{store: store, cache: cache.NewMemoryStore(), web: &stubWeb{}}
	f.pipeline = NewPipeline(emb, products, articles, f.web, f.cache, Config{}, nil)
	return f
}

func (f *fixture) addProduct(t *testing.T, id string, vec []float64, meta map[string]string) {
	t.Helper()
	require.NoError(t, f.store.Upsert(context.Background(), "products", []*vector.Vector{{ID: id, Values: vec, Metadata: meta}}))
}

func TestQueryGroundedAndCached(t *testing.T) {
	f := newFixture(t, stubEmbedder{vec: []float64{1, 0}})
	f.addProduct(t, "p1", []float64{1, 0}, map[string]string{
		MetaName: "Galaxy S24", MetaBrand: "Samsung", MetaPrice: "11000000", MetaGamingScore: "8",
	})
	f.addProduct(t, "p2", []float64{0, 1}, map[string]string{MetaName: "Far Away"})

	model := llmtest.NewFake("The Galaxy S24 is a great choice.")
	req := Request{Query: "  Galaxy S24 narxi  ", Language: classify.LanguageUzbek, Model: model}

	res := f.pipeline.Query(context.Background(), req)
	require.True(t, res.IsOk())
	a := res.Value()
	assert.Equal(t, "The Galaxy S24 is a great choice.", a.Message)
	assert.True(t, a.ContextFound)
	assert.False(t, a.UsedWebSearch)
	assert.Empty(t, a.Sources)
	assert.Positive(t, a.TokensUsed)
	assert.Zero(t, f.web.calls)

	system := model.Calls()[0].Messages[0].Content
	assert.Contains(t, system, "Product Information:")
	assert.Contains(t, system, "- Galaxy S24 (Samsung): Price: 11000000, CPU: N/A")
	assert.Contains(t, system, "Gaming Score: 8/10")
	assert.NotContains(t, system, "Far Away")
	assert.Equal(t, 0.5, model.Calls()[0].Temperature)

	again := f.pipeline.Query(context.Background(), Request{Query: "galaxy s24 NARXI", Language: classify.LanguageUzbek, Model: model})
	require.True(t, again.IsOk())
	assert.Equal(t, a, again.Value())
	assert.Equal(t, 1, model.CallCount())
}

func TestQueryWebFallback(t *testing.T) {
	f := newFixture(t, stubEmbedder{vec: []float64{1, 0}})
	f.web.results = []search.Result{{Title: "Pixel 9 review", URL: "https://example.com/pixel", Description: "Solid camera"}}
	model := llmtest.NewFake("Pixel 9 has a solid camera.")

	res := f.pipeline.Query(context.Background(), Request{Query: "pixel 9 camera", Language: classify.LanguageEnglish, Model: model})
	require.True(t, res.IsOk())
	a := res.Value()
	assert.True(t, a.UsedWebSearch)
	assert.True(t, a.ContextFound)
	assert.Equal(t, []string{"https://example.com/pixel"}, a.Sources)
	assert.Equal(t, 1, f.web.calls)

	system := model.Calls()[0].Messages[0].Content
	assert.Contains(t, system, "Pixel 9 review")
	assert.Contains(t, system, "Cite sources")
}

// knnRetriever 忽略阈值，按 KNN 原样返回固定文档
type knnRetriever struct {
	docs []*schema.Document
}

func (r knnRetriever) Retrieve(ctx context.Context, query string, opts ...einoretriever.Option) ([]*schema.Document, error) {
	return r.docs, nil
}

func TestQueryDropsHitsBelowThreshold(t *testing.T) {
	far := (&schema.Document{ID: "p9", Content: "unrelated phone"}).WithScore(0.2)
	products := knnRetriever{docs: []*schema.Document{far}}
	articles := knnRetriever{}
	web := &stubWeb{results: []search.Result{{Title: "Pixel 9 review", URL: "https://example.com/pixel", Description: "Solid camera"}}}
	p := NewPipeline(stubEmbedder{vec: []float64{1, 0}}, products, articles, web, cache.NewMemoryStore(), Config{}, nil)
	model := llmtest.NewFake("Pixel 9 has a solid camera.")

	res := p.Query(context.Background(), Request{Query: "pixel 9 camera", Language: classify.LanguageEnglish, Model: model})
	require.True(t, res.IsOk())
	assert.Equal(t, 1, web.calls)
	assert.True(t, res.Value().UsedWebSearch)

	system := model.Calls()[0].Messages[0].Content
	assert.NotContains(t, system, "Product Information:")
	assert.NotContains(t, system, "Unknown")
}

func TestQueryNoContext(t *testing.T) {
	f := newFixture(t, stubEmbedder{vec: []float64{1, 0}})
	model := llmtest.NewFake("I don't have details on that.")

	res := f.pipeline.Query(context.Background(), Request{
		Query:         "unknown gadget",
		Language:      classify.LanguageEnglish,
		SystemContext: "BASE",
		History: memory.Context{
			Summary: "likes gaming",
			Recent:  []llm.Message{{Role: llm.RoleUser, Content: "hi"}, {Role: llm.RoleAssistant, Content: "hello"}},
		},
		Model: model,
	})
	require.True(t, res.IsOk())
	assert.False(t, res.Value().ContextFound)
	assert.Equal(t, 1, f.web.calls)

	msgs := model.Calls()[0].Messages
	require.Len(t, msgs, 5)
	assert.True(t, strings.HasPrefix(msgs[0].Content, "BASE\n\n"))
	assert.Contains(t, msgs[0].Content, "no relevant data was found")
	assert.Equal(t, "Previous conversation summary:\nlikes gaming", msgs[1].Content)
	assert.Equal(t, "hi", msgs[2].Content)
	assert.Equal(t, "hello", msgs[3].Content)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "unknown gadget"}, msgs[4])
}

func TestQueryEmbedFailure(t *testing.T) {
	f := newFixture(t, stubEmbedder{err: errors.New("embedding down")})
	model := llmtest.NewFake("unused")

	res := f.pipeline.Query(context.Background(), Request{Query: "q", Language: classify.LanguageRussian, Model: model})
	require.False(t, res.IsOk())
	assert.Equal(t, herrors.KindUpstream, res.Kind())
	assert.Equal(t, StageEmbed, herrors.StageOf(res.Err()))
	assert.Equal(t, Apology(classify.LanguageRussian), res.Value().Message)
	assert.Zero(t, res.Value().TokensUsed)
	assert.False(t, res.Value().ContextFound)
	assert.Zero(t, model.CallCount())
}

func TestQueryGenerateFailureIsNotCached(t *testing.T) {
	f := newFixture(t, stubEmbedder{vec: []float64{1, 0}})
	model := &llmtest.Fake{Err: errors.New("provider 500")}

	res := f.pipeline.Query(context.Background(), Request{Query: "q", Language: classify.LanguageEnglish, Model: model})
	require.False(t, res.IsOk())
	assert.Equal(t, StageGenerate, herrors.StageOf(res.Err()))
	assert.Equal(t, Apology(classify.LanguageEnglish), res.Value().Message)

	var cached Answer
	assert.ErrorIs(t, f.cache.Get(context.Background(), cache.RAGKey("q"), &cached), cache.ErrMiss)
}

func TestArticleContextTruncates(t *testing.T) {
	long := strings.Repeat("я", 600)
	hits := []Hit{{Source: SourceArticle, Doc: docWith(long, map[string]any{MetaTitle: "Обзор"})}}
	block := ArticleContext(hits)
	assert.True(t, strings.HasPrefix(block, "Blog/Article Information:\n- Title: Обзор\n  Content: "))
	assert.True(t, strings.HasSuffix(block, strings.Repeat("я", 500)+"..."))
	assert.Empty(t, ArticleContext(nil))
	assert.Empty(t, ProductContext(nil))
}

func docWith(content string, meta map[string]any) *schema.Document {
	return &schema.Document{Content: content, MetaData: meta}
}
