package cache

import (
	"sort"
	"strings"
)

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ProductKey 推荐结果缓存 key
func ProductKey(query string) string {
	return "cache:product:" + normalize(query)
}

// CompareKey 对比结果缓存 key；名称排序后拼接，与顺序无关
func CompareKey(names []string) string {
	norm := make([]string, len(names))
	for i, n := range names {
		norm[i] = normalize(n)
	}
	sort.Strings(norm)
	return "cache:compare:" + strings.Join(norm, ":")
}

// RAGKey RAG 回答缓存 key
func RAGKey(query string) string {
	return "cache:rag:" + normalize(query)
}

// CurrencyKey 汇率缓存 key
func CurrencyKey(from, to string) string {
	return "cache:currency:" + strings.ToUpper(from) + ":" + strings.ToUpper(to)
}

// TokenKey 用户每日 token 计数 key
func TokenKey(userID string) string {
	return "tokens:" + userID + ":daily"
}

// SessionKey 会话短期记忆列表 key
func SessionKey(sessionID string) string {
	return "session:" + sessionID + ":messages"
}
