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

package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"house-ai/internal/model/llm"
	"house-ai/pkg/log"
)

const (
	defaultMaxContext      = 5
	defaultSummarizeTokens = 3000
	keepAfterSummary       = 2
	summaryTemperature     = 0.3
	summaryMaxTokens       = 300
	summaryNotePrefix      = "Previous conversation summary:\n"
)

const summarizeSystemPrompt = "Summarize this conversation concisely. Capture key " +
	"topics, user preferences, products discussed, and " +
	"any decisions made. Keep it under 200 words."

// Config 记忆管理参数
type Config struct {
	// MaxContextMessages 注入提示词的最近消息条数
	MaxContextMessages int
	// SummarizeTokenThreshold 缓冲超过该 token 数时触发摘要
	SummarizeTokenThreshold int
}

// Manager 两级记忆的读写与自动摘要
type Manager struct {
	log     EphemeralLog
	durable DurableSummaryStore
	model   llm.Client
	cfg     Config
	logger  *log.Logger
}

// NewManager model 为 nil 时不做摘要
func NewManager(ephemeral EphemeralLog, durable DurableSummaryStore, model llm.Client, cfg Config, logger *log.Logger) *Manager {
	if cfg.MaxContextMessages <= 0 {
		cfg.MaxContextMessages = defaultMaxContext
	}
	if cfg.SummarizeTokenThreshold <= 0 {
		cfg.SummarizeTokenThreshold = defaultSummarizeTokens
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Manager{log: ephemeral, durable: durable, model: model, cfg: cfg, logger: logger}
}

// GetContext 先读摘要，再读短期缓冲；缓冲为空时从长期消息回填（不含 system），最后裁剪到 N 条。
// 任一存储失败只记录日志，返回能拿到的部分
func (m *Manager) GetContext(ctx context.Context, sessionID string) Context {
	var out Context

	summary, err := m.durable.LatestSummary(ctx, sessionID)
	if err != nil {
		m.logger.WarnContext(ctx, "读取会话摘要失败", "session_id", sessionID, "error", err)
	}
	out.Summary = summary

	recent, err := m.log.Recent(ctx, sessionID)
	if err != nil {
		m.logger.WarnContext(ctx, "读取短期记忆失败", "session_id", sessionID, "error", err)
	}
	if len(recent) == 0 {
		rows, err := m.durable.RecentMessages(ctx, sessionID, m.cfg.MaxContextMessages)
		if err != nil {
			m.logger.WarnContext(ctx, "读取历史消息失败", "session_id", sessionID, "error", err)
		}
		for _, r := range rows {
			if r.Role != llm.RoleSystem {
				recent = append(recent, r)
			}
		}
	}
	if len(recent) > m.cfg.MaxContextMessages {
		recent = recent[len(recent)-m.cfg.MaxContextMessages:]
	}
	out.Recent = recent
	return out
}

// BuildMessages 顺序：system、摘要说明、最近消息、当前用户消息
func BuildMessages(system string, c Context, user string) []llm.Message {
	msgs := make([]llm.Message, 0, len(c.Recent)+3)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})
	if c.Summary != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: summaryNotePrefix + c.Summary})
	}
	msgs = append(msgs, c.Recent...)
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: user})
}

// SaveExchange 先短期后长期，每级都是先 user 后 assistant；某一级失败不影响另一级
func (m *Manager) SaveExchange(ctx context.Context, sessionID, userMsg, assistantMsg string) error {
	pair := []llm.Message{
		{Role: llm.RoleUser, Content: userMsg},
		{Role: llm.RoleAssistant, Content: assistantMsg},
	}
	var errs []error
	for _, msg := range pair {
		if err := m.log.Append(ctx, sessionID, msg); err != nil {
			errs = append(errs, fmt.Errorf("短期记忆写入失败: %w", err))
			break
		}
	}
	for _, msg := range pair {
		if err := m.durable.AppendMessage(ctx, sessionID, msg); err != nil {
			errs = append(errs, fmt.Errorf("长期记忆写入失败: %w", err))
			break
		}
	}
	return errors.Join(errs...)
}

// CheckAndSummarize 上次摘要后新增消息的 token 数达到阈值时生成摘要、写入新摘要行，并只保留最后 2 条消息。
// 未达阈值返回 "", nil；摘要失败时缓冲保持不变。保留的 2 条不计入阈值，没有新消息时不会重复摘要
func (m *Manager) CheckAndSummarize(ctx context.Context, sessionID string) (string, error) {
	if m.model == nil {
		return "", nil
	}
	pending, err := m.log.Pending(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if len(pending) == 0 {
		return "", nil
	}
	contents := make([]string, len(pending))
	for i, msg := range pending {
		contents[i] = msg.Content
	}
	tokens := llm.EstimateTokens(strings.Join(contents, " "))
	if tokens < m.cfg.SummarizeTokenThreshold {
		return "", nil
	}
	msgs, err := m.log.Recent(ctx, sessionID)
	if err != nil {
		return "", err
	}
	m.logger.InfoContext(ctx, "会话超过阈值，开始摘要",
		"session_id", sessionID, "tokens", tokens, "threshold", m.cfg.SummarizeTokenThreshold)

	summary, err := m.summarize(ctx, msgs)
	if err != nil {
		m.logger.ErrorContext(ctx, "会话摘要失败", "session_id", sessionID, "error", err)
		return "", err
	}
	if err := m.durable.SaveSummary(ctx, sessionID, summary); err != nil {
		return "", fmt.Errorf("保存摘要失败: %w", err)
	}
	keep := msgs
	if len(keep) > keepAfterSummary {
		keep = keep[len(keep)-keepAfterSummary:]
	}
	if err := m.log.Replace(ctx, sessionID, keep); err != nil {
		return summary, fmt.Errorf("重建短期记忆失败: %w", err)
	}
	return summary, nil
}

func (m *Manager) summarize(ctx context.Context, msgs []llm.Message) (string, error) {
	lines := make([]string, len(msgs))
	for i, msg := range msgs {
		lines[i] = msg.Role + ": " + msg.Content
	}
	out, err := m.model.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: summarizeSystemPrompt},
			{Role: llm.RoleUser, Content: strings.Join(lines, "\n")},
		},
		Temperature: summaryTemperature,
		MaxTokens:   summaryMaxTokens,
	})
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(out.Content)
	if summary == "" {
		return "", errors.New("模型返回空摘要")
	}
	return summary, nil
}
