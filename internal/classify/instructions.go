package classify

var languageInstructions = map[Language]string{
	LanguageUzbek: "Foydalanuvchi O'zbek tilida yozmoqda. " +
		"O'zbek tilida javob bering. Sodda va tushunarli tilda yozing.",
	LanguageRussian: "Пользователь пишет на русском языке. " +
		"Отвечайте на русском. Используйте понятный и простой язык.",
	LanguageEnglish: "The user is writing in English. " +
		"Respond in English. Use clear, conversational language.",
}

var toneInstructions = map[Emotion]string{
	EmotionHappy: "The user seems happy and satisfied. Maintain a warm, friendly, " +
		"and enthusiastic tone. Use positive language.",
	EmotionConfused: "The user seems confused. Be extra clear, use simple language, " +
		"break down complex information into steps. Ask if they need " +
		"further clarification.",
	EmotionFrustrated: "The user seems frustrated. Be empathetic, patient, and " +
		"solution-oriented. Acknowledge their frustration and provide " +
		"clear, direct answers.",
	EmotionAngry: "The user seems upset. Be very calm, professional, and " +
		"empathetic. Apologize for any inconvenience and focus on " +
		"resolving their issue quickly.",
	EmotionExcited: "The user is excited! Match their energy with enthusiastic " +
		"responses. Share in their excitement about the products.",
	EmotionNeutral: "The user has a neutral tone. Respond professionally and " +
		"informatively.",
}

// LanguageInstruction 系统提示词中的语言指令；未知语言按英文处理
func LanguageInstruction(lang Language) string {
	if s, ok := languageInstructions[lang]; ok {
		return s
	}
	return languageInstructions[LanguageEnglish]
}

// ToneInstruction 按情绪调整语气的指令
func ToneInstruction(e Emotion) string {
	if s, ok := toneInstructions[e]; ok {
		return s
	}
	return toneInstructions[EmotionNeutral]
}

// Localized 按语言挑选文案，其他语言使用英文
func Localized(lang Language, en, uz, ru string) string {
	switch lang {
	case LanguageUzbek:
		return uz
	case LanguageRussian:
		return ru
	default:
		return en
	}
}
