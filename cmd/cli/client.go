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

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"house-ai/internal/storage/metadata"
	"house-ai/internal/orchestrator"
)

const defaultAPIURL = "http://localhost:8100"

func apiBaseURL() string {
	if u := os.Getenv("HOUSE_API_URL"); u != "" {
		return u
	}
	return defaultAPIURL
}

// Client house-ai HTTP API 客户端
type Client struct {
	rc *resty.Client
}

// apiError 服务端错误响应
type apiError struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func newClient(baseURL, token string, timeout time.Duration) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if token != "" {
		rc.SetAuthToken(token)
	}
	return &Client{rc: rc}
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var apiErr apiError
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(out).
		SetError(&apiErr).
		Post(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return statusError(path, resp.StatusCode(), apiErr, resp.String())
	}
	return nil
}

func statusError(path string, code int, apiErr apiError, raw string) error {
	switch {
	case apiErr.Error != "" && apiErr.Detail != "":
		return fmt.Errorf("%s: %d %s (%s)", path, code, apiErr.Error, apiErr.Detail)
	case apiErr.Error != "":
		return fmt.Errorf("%s: %d %s", path, code, apiErr.Error)
	default:
		return fmt.Errorf("%s: %d %s", path, code, raw)
	}
}

// Health GET /health
func (c *Client) Health(ctx context.Context) (map[string]string, error) {
	var out map[string]string
	resp, err := c.rc.R().SetContext(ctx).SetResult(&out).Get("/health")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /health: %s", resp.String())
	}
	return out, nil
}

// Chat POST /api/chat
func (c *Client) Chat(ctx context.Context, req orchestrator.ChatRequest) (*orchestrator.ChatResponse, error) {
	var out orchestrator.ChatResponse
	if err := c.post(ctx, "/api/chat", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChatStream POST /api/chat/stream，逐行回调
func (c *Client) ChatStream(ctx context.Context, req orchestrator.ChatRequest, onChunk func(orchestrator.Chunk)) error {
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(req).
		SetDoNotParseResponse(true).
		Post("/api/chat/stream")
	if err != nil {
		return err
	}
	body := resp.RawBody()
	defer body.Close()
	if resp.StatusCode() != http.StatusOK {
		var apiErr apiError
		_ = json.NewDecoder(body).Decode(&apiErr)
		return statusError("/api/chat/stream", resp.StatusCode(), apiErr, "")
	}
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var chunk orchestrator.Chunk
		if err := json.Unmarshal(sc.Bytes(), &chunk); err != nil {
			return fmt.Errorf("解析流式输出失败: %w", err)
		}
		onChunk(chunk)
	}
	return sc.Err()
}

// Recommend POST /api/recommend
func (c *Client) Recommend(ctx context.Context, req orchestrator.RecommendRequest) (*orchestrator.RecommendResponse, error) {
	var out orchestrator.RecommendResponse
	if err := c.post(ctx, "/api/recommend", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Compare POST /api/compare
func (c *Client) Compare(ctx context.Context, req orchestrator.CompareRequest) (*orchestrator.CompareResponse, error) {
	var out orchestrator.CompareResponse
	if err := c.post(ctx, "/api/compare", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Session POST /api/session
func (c *Client) Session(ctx context.Context, req orchestrator.SessionRequest) (*metadata.Session, error) {
	var out struct {
		SessionID string    `json:"session_id"`
		CreatedAt time.Time `json:"created_at"`
	}
	if err := c.post(ctx, "/api/session", req, &out); err != nil {
		return nil, err
	}
	return &metadata.Session{ID: out.SessionID, CreatedAt: out.CreatedAt}, nil
}
