package llm

import (
	"unicode"
	"unicode/utf8"
)

// EstimateTokens 粗略估算 token 数：ASCII 约 4 字符 1 token，非 ASCII 字母约 2 字符 1 token
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	ascii, other := 0, 0
	for _, r := range text {
		switch {
		case r < utf8.RuneSelf:
			ascii++
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			other++
		default:
			other += 2
		}
	}
	n := (ascii+3)/4 + (other+1)/2
	if n < 1 {
		n = 1
	}
	return n
}

// MessagesTokens 消息列表的估算 token 数（每条消息额外计 4 个格式 token）
func MessagesTokens(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += EstimateTokens(m.Content) + 4
	}
	return total
}

// fillUsage 上游未返回 usage 时用估算值补齐
func fillUsage(c *Completion, req Request) {
	if c.Usage.TotalTokens > 0 {
		return
	}
	if c.Usage.PromptTokens == 0 {
		c.Usage.PromptTokens = MessagesTokens(req.Messages)
	}
	if c.Usage.CompletionTokens == 0 {
		c.Usage.CompletionTokens = EstimateTokens(c.Content)
	}
	c.Usage.TotalTokens = c.Usage.PromptTokens + c.Usage.CompletionTokens
}
