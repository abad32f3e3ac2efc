package orchestrator

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"house-ai/internal/classify"
	"house-ai/internal/storage/metadata"
)

// BaseSystemPrompt 助手基础人设
const BaseSystemPrompt = "You are House Mobile's AI Assistant, a friendly, knowledgeable " +
	"smartphone expert and platform guide. You help users find the perfect " +
	"phone, compare devices, answer questions about smartphones, AND help " +
	"users navigate the House Mobile app.\n\n" +
	"Guidelines:\n" +
	"- Be helpful, conversational, and concise\n" +
	"- Provide specific, accurate information\n" +
	"- When recommending, explain why each device is a good fit\n" +
	"- Format responses with markdown for readability\n" +
	"- If you don't have enough info, say so honestly\n" +
	"- Never hallucinate specifications or prices\n" +
	"- For platform navigation questions, give exact step-by-step instructions\n"

// PlatformKnowledgePrompt 平台使用指南
const PlatformKnowledgePrompt = `
## House Mobile Platform Guide

House Mobile: O'zbekistonda smartfonlar uchun ijtimoiy savdo platformasi.

### Asosiy Navigatsiya / Navigation
- **Bosh sahifa (Home)**: Mahsulotlar, reels/videolar, hikoyalar lenti
- **Qidiruv (Search)**: Yuqoridagi qidiruv paneli (lupa belgisi), mahsulot va sotuvchilarni qidirish
- **Savatcha (Cart)**: Pastki navigatsiya paneli, savatcha ikonkasi
- **Reels/Videolar**: Pastki navigatsiya, play ikonkasi
- **Profil (Profile)**: Pastki navigatsiya, eng o'ng ikonka

### Profil Menyusi Funksiyalari / Profile Menu
- **Buyurtmalarim (My Orders)** → Profil → "Buyurtmalarim" → /my-orders
- **Sevimlilar (Favorites)** → Profil → "Sevimlilar" → /favorites
- **Profilni tahrirlash (Edit Profile)** → Profil → "Profilni tahrirlash"
- **Sozlamalar (Settings)** → Profil → "Sozlamalar"

### Tilni O'zgartirish / Language Change
- Yo'l: Profil → Sozlamalar → Til (Language) bo'limi
- Qo'llab-quvvatlanadigan tillar: O'zbek, Русский, English

### To'lov / Payment
- Click, Payme, Uzum yoki naqd pul (yetkazib berishda)

### Yetkazib Berish va Qaytarish / Delivery & Returns
- Buyurtma holati: Profil → Buyurtmalarim
- Qaytarish: Buyurtmalarim → buyurtmani tanlang → "Qaytarish" tugmasi

### Sotuvchiga Ariza / Become a Seller
- Profil menyusi → "Sotuvchiga ariza" tugmasi → /apply-seller sahifasi
- Ariza formasini to'ldiring

### Blogerlikga Ariza / Become a Blogger
- Profil menyusi → "Blogerlikga ariza" tugmasi → /apply-blogger sahifasi
- Ariza formasini to'ldiring

### Telegram Bog'lash / Account Linking
- Profil → Sozlamalar → "Telegramni ulash"

### Yon Panel / Sidebar & Messages
- O'ngga suring yoki menyu ikonkasini bosing
- Chat/xabarlar, bildirishnomalar mavjud

### Buyurtma Holati / Order Status
- Profil → Buyurtmalarim → /my-orders
- Holatlari: Kutilmoqda → Tasdiqlandi → Tayyorlanmoqda → Yetkazilmoqda → Yetkazildi

### Mahsulot Joylash / Upload Product (Sellers only)
- Profil → Sotuvchi paneli yoki /upload-product

### Qo'llab-Quvvatlash / Support
- Telegram: /start buyrug'i orqali bot bilan bog'laning
- Profil → Sozlamalar → Yordam markazi
`

const platformHowTo = "\nWhen answering how-to questions about the platform, " +
	"give clear step-by-step navigation instructions. " +
	"Always mention the exact menu path or URL."

// 依赖不可用时追加到系统提示词的说明
const (
	noteProductDBDown = "(Note: Product Database unavailable. Answer based on general knowledge and web results if provided.)"
	noteDBDown        = "(Note: Database currently unavailable. Answer based on general knowledge and web results if provided.)"
	webResultsHeader  = "\n\nWeb Search Results (Use these to answer):\n"
)

// SystemPrompt 基础人设 + 语言指令 + 语气 + 个性化
func SystemPrompt(lang classify.Language, emotion classify.Emotion, personalization string) string {
	return BaseSystemPrompt +
		classify.LanguageInstruction(lang) + "\n" +
		classify.ToneInstruction(emotion) + "\n" +
		personalization
}

// PlatformSystemPrompt 平台帮助意图使用的系统提示词
func PlatformSystemPrompt(lang classify.Language, emotion classify.Emotion) string {
	return BaseSystemPrompt + PlatformKnowledgePrompt +
		"\n" + classify.LanguageInstruction(lang) + "\n" +
		classify.ToneInstruction(emotion) + "\n" +
		platformHowTo
}

// Personalization 由用户画像生成的个性化段落，画像为空时返回空串
func Personalization(p *metadata.UserProfile) string {
	if p == nil {
		return ""
	}
	var sb strings.Builder
	if name := p.DisplayName(); name != "" {
		fmt.Fprintf(&sb, "\nUser's name: %s. Address them personally when appropriate.", name)
	}
	if p.OrderCount > 0 {
		fmt.Fprintf(&sb, "\nThis user has made %d previous orders, they are an experienced buyer.", p.OrderCount)
	}
	if p.Role == "seller" || p.Role == "blogger" {
		fmt.Fprintf(&sb, "\nUser is a %s on the platform.", p.Role)
	}
	return sb.String()
}

// ListingsNote 推荐回答末尾附加的平台在售商品（最多 3 条）
func ListingsNote(lang classify.Language, listings []*metadata.Listing) string {
	if len(listings) == 0 {
		return ""
	}
	header := classify.Localized(lang,
		"**Available on House Mobile platform:**",
		"**Platformada mavjud (House Mobile):**",
		"**Доступно на платформе (House Mobile):**",
	)
	var sb strings.Builder
	sb.WriteString("\n\n" + header + "\n")
	for i, l := range listings {
		if i == 3 {
			break
		}
		fmt.Fprintf(&sb, "- %s: %s so'm\n", l.Title, humanize.FormatFloat("#,###.", l.Price))
	}
	return sb.String()
}

// FailureMessage 兜底的通用失败文案
func FailureMessage(lang classify.Language) string {
	return classify.Localized(lang,
		"I'm sorry, something went wrong on my end. Please try again in a moment.",
		"Kechirasiz, men tomonda xatolik yuz berdi. Birozdan so'ng qayta urinib ko'ring.",
		"Извините, что-то пошло не так. Пожалуйста, попробуйте ещё раз чуть позже.",
	)
}

const (
	streamRefusal   = "I'm sorry, I can only help with smartphone-related questions."
	streamErrorText = "A server error occurred. Please reconnect."
)
