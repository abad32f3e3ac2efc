package classify

import "regexp"

type typoFix struct {
	typo, correction string
	re               *regexp.Regexp
}

func fix(typo, correction string) typoFix {
	return typoFix{typo: typo, correction: correction, re: regexp.MustCompile("(?i)" + regexp.QuoteMeta(typo))}
}

// 常见拼写错误（英/乌/俄），按顺序替换
var typoTable = []typoFix{
	fix("recomend", "recommend"),
	fix("reccomend", "recommend"),
	fix("comparee", "compare"),
	fix("compair", "compare"),
	fix("camra", "camera"),
	fix("baterry", "battery"),
	fix("disply", "display"),
	fix("processer", "processor"),
	fix("smartfon", "smartphone"),
	fix("telefn", "telefon"),
	fix("kmaera", "kamera"),
	fix("baterya", "batareya"),
	fix("ekarn", "ekran"),
	fix("protsesser", "protsessor"),
	fix("телефн", "телефон"),
	fix("камра", "камера"),
	fix("батаря", "батарея"),
	fix("экарн", "экран"),
	fix("процесер", "процессор"),
}

// CorrectTypos 大小写不敏感的子串替换
func CorrectTypos(text string) string {
	for _, f := range typoTable {
		text = f.re.ReplaceAllLiteralString(text, f.correction)
	}
	return text
}
