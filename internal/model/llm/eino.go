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

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	herrors "house-ai/pkg/errors"
)

// EinoClient 通过 eino ChatModel 调用模型
type EinoClient struct {
	provider string
	model    string
	chat     einomodel.BaseChatModel
}

// NewEinoOpenAIClient 使用 eino-ext 的 OpenAI ChatModel 创建客户端
func NewEinoOpenAIClient(ctx context.Context, provider, model, apiKey, baseURL string) (*EinoClient, error) {
	cfg := &openai.ChatModelConfig{
		Model:  model,
		APIKey: apiKey,
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	chat, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("创建 eino ChatModel 失败: %w", err)
	}
	return NewEinoClient(provider, model, chat), nil
}

// NewEinoClient 包装任意 eino ChatModel
func NewEinoClient(provider, model string, chat einomodel.BaseChatModel) *EinoClient {
	return &EinoClient{provider: provider, model: model, chat: chat}
}

func toSchemaMessages(msgs []Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, schema.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		default:
			out = append(out, schema.UserMessage(m.Content))
		}
	}
	return out
}

func (c *EinoClient) options(req Request) []einomodel.Option {
	opts := []einomodel.Option{
		einomodel.WithTemperature(float32(req.Temperature)),
		einomodel.WithMaxTokens(req.maxTokens()),
	}
	if len(req.Stop) > 0 {
		opts = append(opts, einomodel.WithStop(req.Stop))
	}
	return opts
}

func applyMeta(out *Completion, msg *schema.Message) {
	if msg == nil || msg.ResponseMeta == nil {
		return
	}
	if msg.ResponseMeta.FinishReason != "" {
		out.FinishReason = msg.ResponseMeta.FinishReason
	}
	if u := msg.ResponseMeta.Usage; u != nil {
		out.Usage = Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
}

// Complete 实现 Client
func (c *EinoClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	msg, err := c.chat.Generate(ctx, toSchemaMessages(req.Messages), c.options(req)...)
	if err != nil {
		return nil, herrors.Wrapf(herrors.ErrUnavailable, "eino %s generate: %v", c.provider, err)
	}
	out := &Completion{Content: msg.Content, Model: c.model}
	applyMeta(out, msg)
	fillUsage(out, req)
	recordUsage(out)
	return out, nil
}

// Stream 实现 Client
func (c *EinoClient) Stream(ctx context.Context, req Request, onDelta func(delta string) error) (*Completion, error) {
	sr, err := c.chat.Stream(ctx, toSchemaMessages(req.Messages), c.options(req)...)
	if err != nil {
		return nil, herrors.Wrapf(herrors.ErrUnavailable, "eino %s stream: %v", c.provider, err)
	}
	defer sr.Close()

	out := &Completion{Model: c.model}
	var sb strings.Builder
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			out.Content = sb.String()
			fillUsage(out, req)
			return out, herrors.Wrapf(herrors.ErrUnavailable, "eino %s stream recv: %v", c.provider, err)
		}
		applyMeta(out, chunk)
		if chunk == nil || chunk.Content == "" {
			continue
		}
		sb.WriteString(chunk.Content)
		if err := onDelta(chunk.Content); err != nil {
			out.Content = sb.String()
			fillUsage(out, req)
			return out, err
		}
	}
	out.Content = sb.String()
	fillUsage(out, req)
	recordUsage(out)
	return out, nil
}

// Model 返回模型名称
func (c *EinoClient) Model() string { return c.model }

// Provider 返回提供商名称
func (c *EinoClient) Provider() string { return c.provider }
