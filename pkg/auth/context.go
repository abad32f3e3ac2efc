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

package auth

import (
	"context"
)

type contextKey string

const (
	userIDKey        contextKey = "auth.user_id"
	authenticatedKey contextKey = "auth.authenticated"
	requestIDKey     contextKey = "auth.request_id"
)

// WithUserID 将经过校验的 user_id 注入 context
func WithUserID(ctx context.Context, userID string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, authenticatedKey, userID != "")
}

// GetUserID 从 context 获取 user_id，匿名请求为空
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// IsAuthenticated 请求是否携带了有效身份
func IsAuthenticated(ctx context.Context) bool {
	v, _ := ctx.Value(authenticatedKey).(bool)
	return v
}

// WithRequestID 注入请求 ID，用于日志关联
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID 获取请求 ID
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// ResolveUserID 身份优先：已认证的 user_id 覆盖请求体中的 user_id
func ResolveUserID(ctx context.Context, bodyUserID string) string {
	if id := GetUserID(ctx); id != "" {
		return id
	}
	return bodyUserID
}
