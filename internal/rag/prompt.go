package rag

import (
	"context"
	"fmt"
	"strings"

	"house-ai/internal/classify"
	"house-ai/internal/memory"
	"house-ai/internal/model/llm"
	herrors "house-ai/pkg/errors"
)

// 文档元数据键，由索引工具写入
const (
	MetaName        = "name"
	MetaBrand       = "brand"
	MetaPrice       = "price"
	MetaCPU         = "cpu"
	MetaRAM         = "ram"
	MetaCamera      = "camera"
	MetaBattery     = "battery"
	MetaGamingScore = "gaming_score"
	MetaValueScore  = "value_score"
	MetaTitle       = "title"
)

// MetaFields 检索时需要随文档取回的全部元数据键
var MetaFields = []string{
	MetaName, MetaBrand, MetaPrice, MetaCPU, MetaRAM, MetaCamera, MetaBattery,
	MetaGamingScore, MetaValueScore, MetaTitle,
}

const articleSnippetRunes = 500

// ProductContext 商品检索结果格式化为上下文块，无结果时为空串
func ProductContext(hits []Hit) string {
	if len(hits) == 0 {
		return ""
	}
	lines := []string{"Product Information:"}
	for _, h := range hits {
		d := h.Doc
		lines = append(lines, fmt.Sprintf(
			"- %s (%s): Price: %s, CPU: %s, RAM: %s, Camera: %s, Battery: %s, Gaming Score: %s/10, Value Score: %s/10",
			meta(d.MetaData, MetaName, "Unknown"), meta(d.MetaData, MetaBrand, ""),
			meta(d.MetaData, MetaPrice, "N/A"), meta(d.MetaData, MetaCPU, "N/A"),
			meta(d.MetaData, MetaRAM, "N/A"), meta(d.MetaData, MetaCamera, "N/A"),
			meta(d.MetaData, MetaBattery, "N/A"), meta(d.MetaData, MetaGamingScore, "N/A"),
			meta(d.MetaData, MetaValueScore, "N/A"),
		))
	}
	return strings.Join(lines, "\n")
}

// ArticleContext 文章检索结果格式化为上下文块，正文截断到 500 字符
func ArticleContext(hits []Hit) string {
	if len(hits) == 0 {
		return ""
	}
	lines := []string{"Blog/Article Information:"}
	for _, h := range hits {
		lines = append(lines, fmt.Sprintf("- Title: %s\n  Content: %s",
			meta(h.Doc.MetaData, MetaTitle, "Unknown"), truncate(h.Doc.Content, articleSnippetRunes)))
	}
	return strings.Join(lines, "\n")
}

func meta(m map[string]any, key, def string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	s := fmt.Sprint(v)
	if s == "" {
		return def
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func joinBlocks(blocks []string) string {
	return strings.Join(blocks, "\n\n")
}

func systemPrompt(lang classify.Language, ctxText string, hasContext, usedWeb bool, sources []string) string {
	instr := classify.LanguageInstruction(lang)
	if !hasContext {
		return "You are a smartphone assistant for House Mobile. " +
			"The user asked a question, but no relevant data was found " +
			"in our database or web search. Politely inform the user " +
			"that you don't have specific information about this topic, " +
			"but offer general guidance if possible.\n" + instr
	}
	prompt := "You are a knowledgeable smartphone assistant for House Mobile. " +
		"Answer the user's question using ONLY the provided context below. " +
		"Do NOT make up information. If the context doesn't contain the " +
		"answer, say so clearly. Be helpful and conversational.\n" +
		instr + "\n\nContext:\n" + ctxText
	if usedWeb && len(sources) > 0 {
		prompt += "\n\nNote: Some information came from web search. Cite sources when using external information."
	}
	return prompt
}

func (p *Pipeline) generate(ctx context.Context, req Request, ctxText string, hasContext, usedWeb bool, sources []string) (*Answer, error) {
	if req.Model == nil {
		return nil, herrors.Wrap(herrors.ErrInvalidArg, "RAG 未指定模型")
	}
	system := systemPrompt(req.Language, ctxText, hasContext, usedWeb, sources)
	if req.SystemContext != "" {
		system = req.SystemContext + "\n\n" + system
	}

	msgs := memory.BuildMessages(system, req.History, req.Query)
	out, err := req.Model.Complete(ctx, llm.Request{Messages: msgs, Temperature: generateTemp})
	if err != nil {
		return nil, herrors.Wrap(herrors.ErrUnavailable, err.Error())
	}
	a := &Answer{
		Message:       out.Content,
		Sources:       []string{},
		TokensUsed:    out.Usage.TotalTokens,
		Model:         out.Model,
		UsedWebSearch: usedWeb,
		ContextFound:  hasContext,
	}
	if usedWeb {
		a.Sources = sources
	}
	return a, nil
}
