package classify

import "regexp"

type labelPatterns[L ~string] struct {
	label    L
	patterns []*regexp.Regexp
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile("(?i)" + p)
	}
	return out
}

// 乌兹别克语撇号的各种写法
const uzApos = `['‘’ʻ` + "`" + `]`

// cyrillicWord 西里尔词的边界；RE2 的 \b 只识别 ASCII
func cyrillicWord(alternatives string) string {
	return `(?:^|[^\p{L}\p{N}_])(?:` + alternatives + `)(?:$|[^\p{L}\p{N}_])`
}

var intentTable = []labelPatterns[Intent]{
	{IntentRecommendation, compileAll(
		`recommend`, `suggest`, `tavsiya`, `qaysi.*yaxshi`, `eng yaxshi`,
		`best\s+(phone|smartphone|device)`, `top\s+\d+`, `what\s+should\s+i\s+(buy|get)`,
		`рекоменд`, `посоветуй`, `какой.*лучш`, `самый лучший`, `nima olsam`, `qanday telefon`,
	)},
	{IntentComparison, compileAll(
		`compare`, `vs\.?`, `versus`, `difference\s+between`, `taqqosla`, `farqi\s+nima`,
		`qaysi\s+biri`, `сравни`, `разница`, `что лучше`, `или`, `yoki`,
	)},
	{IntentProductDetail, compileAll(
		`specifications?`, `specs?\b`, `details?\s+about`, `tell\s+me\s+about`, `xarakter`,
		`texnik`, `ma'lumot`, `haqida`, `характеристик`, `подробн`, `расскаж`, `price\s+of`,
		`narxi`, `цена`, `how\s+much`, `qancha`, `сколько\s+стоит`,
	)},
	{IntentBlogSearch, compileAll(
		`blog`, `article`, `maqola`, `news`, `yangilik`, `review`, `обзор`, `статья`, `новост`,
	)},
	{IntentTrendInquiry, compileAll(
		`trend`, `popular`, `mashhur`, `ommabop`, `trending`, `what'?s\s+hot`, `тренд`, `популярн`, `хит`,
	)},
	{IntentBudgetConversion, compileAll(
		`convert`, `currency`, `dollar`, `valyuta`, `so'm`, `sum\b`, `usd`, `eur`, `uzs`,
		`конверт`, `валют`, `доллар`, `necha dollar`, `necha so'm`,
	)},
	{IntentPlatformHelp, compileAll(
		`how\s+do\s+i`,
		`where\s+(is|are|can\s+i\s+find)`,
		`how\s+to\s+(change|switch|find|access|open|apply|become|register)`,
		`how\s+can\s+i`,
		`language\s+(change|switch|setting)`,
		`apply\s+(for\s+)?(blogger|seller)`,
		`become\s+a?\s+(seller|blogger)`,
		`my\s+orders`,
		`order\s+history`,
		`where\s+is\s+(cart|basket|favorites|profile|menu)`,
		`edit\s+profile`,
		`qanday\s+qilsam`,
		`qayerda`,
		`qanday\s+o`+uzApos+`zgartirish`,
		`til\s+(o`+uzApos+`zgartirish|sozlash)`,
		`blogerlikga\s+ariza`,
		`sotuvchiga\s+ariza`,
		`mening\s+buyurtmalarim`,
		`profil\s+tahrirlash`,
		`savatcha`,
		`sevimlilar`,
		`sozlamalar`,
		`qanday\s+ulash`,
		`qanday\s+ro`+uzApos+`yxatdan`,
		`ilovada\s+qayerdan`,
		`qayerdan\s+topaman`,
		`как\s+(изменить|переключить|найти|зайти|подать)`,
		`где\s+(находится|найти)`,
		`смена\s+языка`,
		`настройки`,
		`стать\s+(продавцом|блогером)`,
		`подать\s+заявку`,
		`мои\s+заказы`,
		`редактировать\s+профиль`,
		`корзина`,
		`избранное`,
	)},
}

var emotionTable = []labelPatterns[Emotion]{
	{EmotionHappy, compileAll(
		`thank`, `thanks`, `great`, `awesome`, `love`, `perfect`,
		`rahmat`, `zo'r`, `ajoyib`, `yaxshi`, `barakalla`,
		`спасибо`, `отлично`, `здорово`, `класс`, `супер`,
		`😊`, `😄`, `🎉`, `❤️`, `👍`,
	)},
	{EmotionConfused, compileAll(
		`confused`, `don'?t\s+understand`, `what\s+do\s+you\s+mean`, `unclear`, `help\s+me\s+understand`,
		`tushunmadim`, `nima\s+demoqchisiz`, `qanday`,
		`не понимаю`, `не понял`, `что значит`, `как это`,
		`🤔`, `\?\?+`,
	)},
	{EmotionFrustrated, compileAll(
		`frustrat`, `annoying`, `doesn'?t\s+work`, `broken`, `terrible`, `useless`,
		`ishlamayapti`, `buzilgan`, `yomon`,
		`не работает`, `ужас`, `бесполезн`,
		`😤`, `😡`,
	)},
	{EmotionAngry, compileAll(
		`angry`, `furious`, `worst`, `hate`, `stupid`, `horrible`, `disgusting`,
		`g'azab`, `nafrat`, `eng yomon`,
		`злой`, `ненавижу`, `худший`, `отврат`,
		`🤬`, `💢`,
	)},
	{EmotionExcited, compileAll(
		`excited`, `amazing`, `incredible`, `wow`, `can'?t\s+wait`, `fantastic`,
		`hayajon`, `ajab`, `zo'r-ku`,
		`ура`, `круто`, `невероятно`, `вау`,
		`🤩`, `🔥`, `💥`, `⚡`,
	)},
}

var uzbekMarkers = compileAll(
	`o`+uzApos,
	`g`+uzApos,
	`\b(salom|rahmat|telefon|narx|qancha|yaxshi|qaysi|menga|uchun|kerak|bor|yo'q)\b`,
	`\b(tavsiya|taqqosla|eng|kamera|o'yin|arzon|qimmat)\b`,
	`\b(tushunmadim|nima|qanday|qayerda|iltimos)\b`,
)

var russianMarkers = compileAll(
	`[а-яА-ЯёЁ]`,
	cyrillicWord(`привет|спасибо|телефон|цена|сколько|хороший|какой|мне|для|нужно`),
	cyrillicWord(`рекомендуй|сравни|лучший|камера|игра|дешевый|дорогой`),
	cyrillicWord(`не понимаю|что|как|где|пожалуйста`),
)
