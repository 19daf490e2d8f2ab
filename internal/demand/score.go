package demand

import (
	"strings"
	"unicode/utf8"
)

// Scoring constants.
const (
	longPostChars     = 220
	maxDemandTextLen  = 170
	truncationTrailer = "..."
)

// The first-person/need-verb bonus uses its own checks rather than the
// demand pattern set so a post like "we want a faster way" still earns it.
var (
	firstPersonPattern = compilePatterns(`\b(?:i|we)\b`)[0]
	needVerbPattern    = compilePatterns(`\b(?:need|wish|want|looking)\b`)[0]
)

// ConfidenceScore counts demand-phrasing pattern hits across title and
// body, plus bonuses for a question mark, a first-person need statement,
// and a long post. Non-negative, no upper bound.
func ConfidenceScore(title, body string) int {
	combined := strings.TrimSpace(title + " " + body)
	score := HitCount(combined, CategoryDemand)
	if strings.Contains(combined, "?") {
		score++
	}
	if firstPersonPattern.MatchString(combined) && needVerbPattern.MatchString(combined) {
		score++
	}
	if utf8.RuneCountInString(combined) > longPostChars {
		score++
	}
	return score
}

// UrgencyScore counts urgency pattern hits across title and body.
func UrgencyScore(title, body string) int {
	return HitCount(title+" "+body, CategoryUrgency)
}

// BestDemandSentence returns the first sentence of "title. body" matching
// a demand-phrasing pattern, the first sentence when none match, or the
// compacted title when there are no sentences at all.
func BestDemandSentence(title, body string) string {
	sentences := SplitSentences(strings.TrimSpace(title + ". " + body))
	if len(sentences) == 0 {
		return Compact(title)
	}
	for _, sentence := range sentences {
		if HitCount(sentence, CategoryDemand) > 0 {
			return sentence
		}
	}
	return sentences[0]
}

// shorten compacts text and truncates it to maxLen characters, ending
// with an ellipsis when truncation happens.
func shorten(text string, maxLen int) string {
	txt := Compact(text)
	runes := []rune(txt)
	if len(runes) <= maxLen {
		return txt
	}
	head := strings.TrimRight(string(runes[:maxLen-len(truncationTrailer)]), " ")
	return head + truncationTrailer
}
