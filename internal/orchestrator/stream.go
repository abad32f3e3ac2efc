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

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"house-ai/internal/classify"
	"house-ai/internal/memory"
	"house-ai/internal/model/llm"
	"house-ai/pkg/metrics"
	"house-ai/pkg/tracing"
)

// emitError 写出失败（客户端断开等），不再尝试发送错误块
type emitError struct{ err error }

func (e *emitError) Error() string { return "emit: " + e.err.Error() }

func (e *emitError) Unwrap() error { return e.err }

// Stream 流式处理一轮对话。平台帮助与闲聊逐段输出模型增量，其余意图完整生成后作为单个文本块输出；
// 最后输出 done 块（携带 session_id 与 intent）。客户端中途断开时保存已生成部分
func (o *Orchestrator) Stream(ctx context.Context, req ChatRequest, emit func(Chunk) error) (err error) {
	start := time.Now()
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	ctx, span := tracing.StartTurnSpan(ctx, sessionID, true)
	intentLabel, outcome := "none", "ok"

	defer func() {
		if r := recover(); r != nil {
			o.Logger.ErrorContext(ctx, "流式对话 panic", "session_id", sessionID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
			_ = emit(Chunk{Type: ChunkError, Content: streamErrorText})
		}
		if err != nil {
			outcome = "error"
		}
		metrics.TurnDuration.WithLabelValues(intentLabel).Observe(time.Since(start).Seconds())
		metrics.TurnTotal.WithLabelValues(intentLabel, outcome).Inc()
		tracing.EndSpan(span, err)
	}()

	if classify.IsInjection(req.Message) {
		outcome = "rejected"
		return o.emitWhole(emit, streamRefusal, sessionID, "")
	}
	t, early := o.prepare(ctx, req, sessionID)
	if early != nil {
		outcome = "rejected"
		return o.emitWhole(emit, early.Message, sessionID, "")
	}
	intentLabel = string(t.intent())

	switch t.intent() {
	case classify.IntentPlatformHelp:
		err = o.streamComplete(ctx, t, PlatformSystemPrompt(t.lang(), t.emotion()), emit)
	case classify.IntentGeneralChat:
		err = o.streamComplete(ctx, t, t.system, emit)
	default:
		if err = o.answer(ctx, t); err == nil {
			if e := emit(Chunk{Type: ChunkText, Content: t.message}); e != nil {
				err = &emitError{err: e}
			}
		}
	}

	if err != nil {
		var ee *emitError
		switch {
		case errors.As(err, &ee) || ctx.Err() != nil:
			o.Logger.InfoContext(ctx, "客户端断开，保存已生成内容", "session_id", sessionID, "partial_len", len(t.message))
			if strings.TrimSpace(t.message) != "" {
				o.finish(context.WithoutCancel(ctx), t)
			}
		default:
			o.Logger.ErrorContext(ctx, "流式对话失败", "session_id", sessionID, "intent", intentLabel, "error", err)
			_ = emit(Chunk{Type: ChunkError, Content: streamErrorText})
		}
		return err
	}

	o.finish(ctx, t)
	outcome = t.outcome
	return emit(Chunk{Type: ChunkDone, Data: doneData(sessionID, string(t.intent()))})
}

func (o *Orchestrator) emitWhole(emit func(Chunk) error, text, sessionID, intent string) error {
	if err := emit(Chunk{Type: ChunkText, Content: text}); err != nil {
		return err
	}
	return emit(Chunk{Type: ChunkDone, Data: doneData(sessionID, intent)})
}

func doneData(sessionID, intent string) map[string]any {
	data := map[string]any{"session_id": sessionID}
	if intent != "" {
		data["intent"] = intent
	}
	return data
}

// streamComplete 逐段输出增量；t.message 始终保存已输出的部分
func (o *Orchestrator) streamComplete(ctx context.Context, t *turn, system string, emit func(Chunk) error) error {
	var sb strings.Builder
	req := llm.Request{Messages: memory.BuildMessages(system, t.history, t.text())}
	out, err := t.model.Stream(ctx, req, func(delta string) error {
		if delta == "" {
			return nil
		}
		if e := emit(Chunk{Type: ChunkText, Content: delta}); e != nil {
			return &emitError{err: e}
		}
		sb.WriteString(delta)
		t.message = sb.String()
		return nil
	})
	if out != nil {
		t.tokens, t.modelName = out.Usage.TotalTokens, out.Model
	}
	return err
}
