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

package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	herrors "house-ai/pkg/errors"
)

const (
	defaultModel     = "text-embedding-3-small"
	defaultDimension = 1536
	maxBatch         = 256
)

// OpenAIEmbedder 调用 OpenAI 兼容的 /embeddings 接口
type OpenAIEmbedder struct {
	apiKey    string
	model     string
	baseURL   string
	dimension int
	client    *resty.Client
}

// NewOpenAIEmbedder 创建 OpenAI Embedding 客户端
func NewOpenAIEmbedder(apiKey, model, baseURL string, dimension int) *OpenAIEmbedder {
	if model == "" {
		model = defaultModel
	}
	if dimension <= 0 {
		dimension = defaultDimension
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(500 * time.Millisecond)
	return &OpenAIEmbedder{
		apiKey:    apiKey,
		model:     model,
		baseURL:   strings.TrimRight(baseURL, "/"),
		dimension: dimension,
		client:    client,
	}
}

// Model 返回模型名称
func (e *OpenAIEmbedder) Model() string { return e.model }

// Dimension 返回向量维度
func (e *OpenAIEmbedder) Dimension() int { return e.dimension }

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed 按批调用接口，结果按 index 还原顺序
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := min(start+maxBatch, len(texts))
		vecs, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	body := map[string]any{
		"model": e.model,
		"input": texts,
	}
	if strings.HasPrefix(e.model, "text-embedding-3") {
		body["dimensions"] = e.dimension
	}
	response, err := e.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+e.apiKey).
		SetBody(body).
		Post(e.baseURL + "/embeddings")
	if err != nil {
		return nil, herrors.Wrapf(herrors.ErrUnavailable, "调用 embeddings API failed: %v", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, herrors.Wrapf(herrors.ErrUnavailable, "embeddings API 返回错误 %d: %s", response.StatusCode(), response.String())
	}

	var result embeddingResponse
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("解析 embeddings 响应failed: %w", err)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings 返回 %d 条，期望 %d 条", len(result.Data), len(texts))
	}
	vecs := make([][]float64, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embeddings 返回非法 index %d", d.Index)
		}
		if len(d.Embedding) != e.dimension {
			return nil, fmt.Errorf("embedding 维度 %d 与配置 %d 不一致", len(d.Embedding), e.dimension)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}
