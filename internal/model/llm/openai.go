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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	herrors "house-ai/pkg/errors"
	"house-ai/pkg/metrics"
)

// OpenAIClient OpenAI 兼容的 Chat Completions 客户端（OpenAI、Groq 等）
type OpenAIClient struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	client   *resty.Client
}

// NewOpenAIClient 创建 OpenAI 兼容客户端；baseURL 为空时用 OPENAI_BASE_URL 或官方地址
func NewOpenAIClient(provider, model, apiKey, baseURL string) *OpenAIClient {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
		if envURL := os.Getenv("OPENAI_BASE_URL"); envURL != "" {
			baseURL = envURL
		}
	}
	if provider == "" {
		provider = "openai"
	}

	client := resty.New()
	client.SetTimeout(60 * time.Second)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(5 * time.Second)

	return &OpenAIClient{
		provider: provider,
		model:    model,
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   client,
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stop        []string  `json:"stop,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

func (c *OpenAIClient) body(req Request, stream bool) chatRequest {
	return chatRequest{
		Model:       c.model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.maxTokens(),
		Stop:        req.Stop,
		Stream:      stream,
	}
}

// Complete 调用 /chat/completions
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetBody(c.body(req, false)).
		Post(c.baseURL + "/chat/completions")
	if err != nil {
		return nil, herrors.Wrapf(herrors.ErrUnavailable, "调用 %s API failed: %v", c.provider, err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, herrors.Wrapf(herrors.ErrUnavailable, "%s API 返回错误 %d: %s", c.provider, response.StatusCode(), response.String())
	}

	var result chatResponse
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("解析 %s 响应failed: %w", c.provider, err)
	}
	if len(result.Choices) == 0 {
		return nil, herrors.Wrapf(herrors.ErrUnavailable, "%s API 没有返回结果", c.provider)
	}

	out := &Completion{
		Content:      result.Choices[0].Message.Content,
		Model:        c.model,
		FinishReason: result.Choices[0].FinishReason,
	}
	if result.Model != "" {
		out.Model = result.Model
	}
	if result.Usage != nil {
		out.Usage = *result.Usage
	}
	fillUsage(out, req)
	recordUsage(out)
	return out, nil
}

// Stream 以 SSE 方式调用 /chat/completions
func (c *OpenAIClient) Stream(ctx context.Context, req Request, onDelta func(delta string) error) (*Completion, error) {
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "text/event-stream").
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetBody(c.body(req, true)).
		SetDoNotParseResponse(true).
		Post(c.baseURL + "/chat/completions")
	if err != nil {
		return nil, herrors.Wrapf(herrors.ErrUnavailable, "调用 %s stream API failed: %v", c.provider, err)
	}
	raw := response.RawBody()
	defer raw.Close()
	if response.StatusCode() != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(raw, 4096))
		return nil, herrors.Wrapf(herrors.ErrUnavailable, "%s stream API 返回错误 %d: %s", c.provider, response.StatusCode(), string(b))
	}

	out := &Completion{Model: c.model}
	var sb strings.Builder
	scanner := bufio.NewScanner(raw)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}
		var chunk chatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if chunk.Model != "" {
			out.Model = chunk.Model
		}
		if chunk.Usage != nil {
			out.Usage = *chunk.Usage
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if fr := chunk.Choices[0].FinishReason; fr != "" {
			out.FinishReason = fr
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		if err := onDelta(delta); err != nil {
			out.Content = sb.String()
			fillUsage(out, req)
			return out, err
		}
	}
	out.Content = sb.String()
	if err := scanner.Err(); err != nil {
		fillUsage(out, req)
		return out, herrors.Wrapf(herrors.ErrUnavailable, "%s stream 读取中断: %v", c.provider, err)
	}
	fillUsage(out, req)
	recordUsage(out)
	return out, nil
}

// Model 返回模型名称
func (c *OpenAIClient) Model() string { return c.model }

// Provider 返回提供商名称
func (c *OpenAIClient) Provider() string { return c.provider }

func recordUsage(c *Completion) {
	metrics.LLMTokensTotal.WithLabelValues(c.Model, "input").Add(float64(c.Usage.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues(c.Model, "output").Add(float64(c.Usage.CompletionTokens))
}
