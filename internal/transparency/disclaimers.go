package transparency

import "strings"

// #region pools
var shortSignatures = map[string][]string{
	"es": {
		"#GeneradoPorIA",
		"🤖 Respuesta de IA",
		"(Roast automático)",
	},
	"en": {
		"#AIGenerated",
		"🤖 AI reply",
		"(Automated roast)",
	},
}

var creativeDisclaimers = map[string][]string{
	"es": {
		"Ningún humano perdió el tiempo escribiendo esto. 🤖",
		"Escrito por una IA con más paciencia que tú.",
		"Roast servido en frío por nuestra IA.",
	},
	"en": {
		"No humans wasted their time writing this. 🤖",
		"Written by an AI with more patience than you.",
		"Roast served cold by our AI.",
	},
}

var bioRecommendations = map[string]string{
	"es": "Algunas respuestas de esta cuenta son generadas por IA.",
	"en": "Some replies from this account are AI-generated.",
}

// #endregion pools

// #region language
var languageHints = map[string][]string{
	"es": {"el", "la", "los", "las", "que", "eres", "es", "muy", "pero", "por", "para", "con", "una", "tu", "no", "sí", "qué"},
	"en": {"the", "you", "are", "is", "and", "your", "this", "that", "with", "for", "not", "what", "at", "so"},
}

// DetectLanguage guesses es or en from common function words. Ties and
// unknown text fall back to def.
func DetectLanguage(text, def string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r == 'á' || r == 'é' || r == 'í' || r == 'ó' || r == 'ú' || r == 'ñ')
	})
	if len(words) == 0 {
		return def
	}

	scores := map[string]int{}
	for lang, hints := range languageHints {
		set := make(map[string]bool, len(hints))
		for _, h := range hints {
			set[h] = true
		}
		for _, w := range words {
			if set[w] {
				scores[lang]++
			}
		}
	}
	switch {
	case scores["es"] > scores["en"]:
		return "es"
	case scores["en"] > scores["es"]:
		return "en"
	}
	return def
}

func supported(lang string) bool {
	_, ok := shortSignatures[lang]
	return ok
}

// BioText returns the suggested bio disclosure for lang.
func BioText(lang string) string {
	if t, ok := bioRecommendations[lang]; ok {
		return t
	}
	return bioRecommendations["es"]
}

// #endregion language
