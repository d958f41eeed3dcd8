package review

// #region imports
import (
	"strings"
	"unicode"
)

// #endregion

// #region blocked-terms

// blockedTerms are hard safety failures regardless of what the model says.
var blockedTerms = []string{
	"kill yourself",
	"kys",
	"go die",
	"hope you die",
	"i will find you",
	"i know where you live",
	"end your life",
}

// #endregion

// #region refusal-patterns

var refusalPatterns = []string{
	"i cannot",
	"i can't",
	"as an ai",
	"as a language model",
	"i'm not able to",
	"i am not able to",
	"i won't",
	"not appropriate",
	"i'd be happy to help",
	"how can i help",
}

// #endregion

// #region moderator

// moderatorCheck fails empty text and blocked terms.
func moderatorCheck(in Input) (bool, string) {
	lower := strings.ToLower(strings.TrimSpace(in.RoastText))
	if len(strings.TrimFunc(lower, unicode.IsSpace)) == 0 {
		return false, "empty roast"
	}
	words := wordSet(lower)
	for _, term := range blockedTerms {
		if strings.Contains(term, " ") {
			if strings.Contains(lower, term) {
				return false, "contains blocked phrase: " + term
			}
			continue
		}
		if words[term] {
			return false, "contains blocked phrase: " + term
		}
	}
	return true, ""
}

// #endregion

// #region comedian

// comedianCheck fails refusals and degenerate repetition.
func comedianCheck(in Input) (bool, string) {
	lower := strings.ToLower(strings.TrimSpace(in.RoastText))
	for _, p := range refusalPatterns {
		if strings.Contains(lower, p) {
			return false, "reads as a refusal, not a roast"
		}
	}
	if hasRepetition(lower) {
		return false, "repetitive"
	}
	return true, ""
}

// hasRepetition reports 3+ identical sentences.
func hasRepetition(lower string) bool {
	sentences := strings.FieldsFunc(lower, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	if len(sentences) < 3 {
		return false
	}
	counts := make(map[string]int)
	for _, s := range sentences {
		trimmed := strings.TrimSpace(s)
		if len(trimmed) > 10 {
			counts[trimmed]++
		}
	}
	for _, c := range counts {
		if c >= 3 {
			return true
		}
	}
	return false
}

// #endregion

// #region style

// styleCheck enforces length bounds and rejects echoes of the comment.
func styleCheck(in Input, maxLength int) (bool, string) {
	text := strings.TrimSpace(in.RoastText)
	if maxLength > 0 && len([]rune(text)) > maxLength {
		return false, "too long"
	}
	if len(strings.Fields(text)) < 3 {
		return false, "too short"
	}
	orig := strings.ToLower(strings.TrimSpace(in.OriginalComment))
	if len(orig) > 10 && strings.Contains(strings.ToLower(text), orig) {
		return false, "echoes the original comment"
	}
	return true, ""
}

// #endregion

// #region helpers

func wordSet(lower string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	}) {
		set[w] = true
	}
	return set
}

// #endregion
