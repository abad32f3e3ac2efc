package classify

// InjectionRefusal 检测到提示词注入时的固定回复
const InjectionRefusal = "I'm sorry, I can only help with smartphone-related questions. How can I assist you today?"

var injectionPatterns = compileAll(
	`ignore\s+(all\s+)?previous\s+instructions`,
	`disregard\s+(all\s+)?prior`,
	`you\s+are\s+now\s+(a\s+)?DAN`,
	`pretend\s+you\s+are`,
	`act\s+as\s+if\s+you\s+have\s+no\s+restrictions`,
	`override\s+(your\s+)?system\s+prompt`,
	`reveal\s+(your\s+)?system\s+prompt`,
	`what\s+is\s+your\s+system\s+prompt`,
	`ignore\s+safety`,
	`bypass\s+(content\s+)?filter`,
)

// IsInjection 消息是否包含提示词注入
func IsInjection(text string) bool {
	for _, p := range injectionPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
