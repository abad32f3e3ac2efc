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

package classify

import (
	"context"

	"house-ai/internal/model/llm"
	"house-ai/pkg/log"
	"house-ai/pkg/metrics"
)

// DefaultThreshold 规则置信度低于该值时调用模型分类
const DefaultThreshold = 0.65

// 模型分类命中有效标签时的置信度
const (
	modelIntentConfidence   = 0.85
	modelLanguageConfidence = 0.9
	modelEmotionConfidence  = 0.8
	modelTemperature        = 0.1
)

const intentPrompt = "You are an intent classifier for a smartphone e-commerce platform. " +
	"Classify the user message into exactly one category. " +
	"Respond with ONLY the category name, nothing else.\n\n" +
	"Categories:\n" +
	"- recommendation (user wants phone suggestions)\n" +
	"- comparison (user wants to compare phones)\n" +
	"- product_detail (user asks about a specific phone)\n" +
	"- blog_search (user asks about articles/reviews)\n" +
	"- trend_inquiry (user asks about trending phones)\n" +
	"- budget_conversion (user asks about currency/price conversion)\n" +
	"- platform_help (user asks how to use the app, navigation, how to apply for blogger/seller, change language, find orders, settings, etc.)\n" +
	"- general_chat (everything else)"

const languagePrompt = "Detect the language of the user's message. " +
	"Respond with ONLY one of: uz, ru, en"

const emotionPrompt = "Detect the emotion in the user's message. " +
	"Respond with ONLY one word: happy, confused, frustrated, angry, excited, or neutral."

// Classification 一条消息的完整分类结果
type Classification struct {
	Original  string           `json:"original"`
	Corrected string           `json:"corrected"`
	Language  Result[Language] `json:"language"`
	Intent    Result[Intent]   `json:"intent"`
	Emotion   Result[Emotion]  `json:"emotion"`
	// Override 客户端显式指定的语言，非空时跳过语言检测
	Override Language `json:"override,omitempty"`
}

// Cascade 规则分类 + 低置信度时的模型回退
type Cascade struct {
	model     llm.Client
	threshold float64
	logger    *log.Logger
}

// NewCascade model 为 nil 时只使用规则；threshold<=0 时使用 DefaultThreshold
func NewCascade(model llm.Client, threshold float64, logger *log.Logger) *Cascade {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Cascade{model: model, threshold: threshold, logger: logger}
}

// Threshold 返回回退阈值
func (c *Cascade) Threshold() float64 { return c.threshold }

// Intent 意图分类
func (c *Cascade) Intent(ctx context.Context, text string) Result[Intent] {
	r := DetectIntent(text)
	if !c.needsModel(r.Confidence) {
		return r
	}
	if label, ok := askModel(ctx, c, "intent", intentPrompt, text, 20, ParseIntent); ok {
		return Result[Intent]{Label: label, Confidence: modelIntentConfidence}
	}
	return r
}

// Language 语言检测
func (c *Cascade) Language(ctx context.Context, text string) Result[Language] {
	r := DetectLanguage(text)
	if !c.needsModel(r.Confidence) {
		return r
	}
	if label, ok := askModel(ctx, c, "language", languagePrompt, text, 5, ParseLanguage); ok {
		return Result[Language]{Label: label, Confidence: modelLanguageConfidence}
	}
	return r
}

// Emotion 情绪检测
func (c *Cascade) Emotion(ctx context.Context, text string) Result[Emotion] {
	r := DetectEmotion(text)
	if !c.needsModel(r.Confidence) {
		return r
	}
	if label, ok := askModel(ctx, c, "emotion", emotionPrompt, text, 10, ParseEmotion); ok {
		return Result[Emotion]{Label: label, Confidence: modelEmotionConfidence}
	}
	return r
}

// Classify 纠错后依次做语言、意图、情绪分类
func (c *Cascade) Classify(ctx context.Context, text string, override Language) *Classification {
	cl := &Classification{Original: text, Override: override}
	c.correct(cl)
	c.detectLanguage(ctx, cl)
	c.classifyIntent(ctx, cl)
	c.detectEmotion(ctx, cl)
	return cl
}

func (c *Cascade) correct(cl *Classification) {
	cl.Corrected = CorrectTypos(cl.Original)
}

func (c *Cascade) detectLanguage(ctx context.Context, cl *Classification) {
	if cl.Override != "" {
		cl.Language = Result[Language]{Label: cl.Override, Confidence: 1}
		return
	}
	cl.Language = c.Language(ctx, cl.Corrected)
}

func (c *Cascade) classifyIntent(ctx context.Context, cl *Classification) {
	cl.Intent = c.Intent(ctx, cl.Corrected)
}

func (c *Cascade) detectEmotion(ctx context.Context, cl *Classification) {
	cl.Emotion = c.Emotion(ctx, cl.Corrected)
}

func (c *Cascade) needsModel(confidence float64) bool {
	return c.model != nil && confidence < c.threshold
}

// askModel 单标签约束提示；返回无效标签或调用失败时 ok=false
func askModel[L ~string](ctx context.Context, c *Cascade, kind, system, text string, maxTokens int, parse func(string) (L, bool)) (L, bool) {
	var zero L
	out, err := c.model.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: text},
		},
		Temperature: modelTemperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		metrics.ClassifierFallbackTotal.WithLabelValues(kind, "error").Inc()
		c.logger.WarnContext(ctx, "模型分类失败，使用规则结果", "kind", kind, "error", err)
		return zero, false
	}
	label, ok := parse(out.Content)
	if !ok {
		metrics.ClassifierFallbackTotal.WithLabelValues(kind, "rejected").Inc()
		c.logger.DebugContext(ctx, "模型返回无效标签", "kind", kind, "label", out.Content)
		return zero, false
	}
	metrics.ClassifierFallbackTotal.WithLabelValues(kind, "accepted").Inc()
	return label, true
}
