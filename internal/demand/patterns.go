package demand

import "regexp"

// Category identifies one of the fixed heuristic pattern sets. New signal
// categories are added here and in patternSets; nothing else changes.
type Category string

// Pattern categories.
const (
	CategoryDemand        Category = "demand"
	CategoryAskIntent     Category = "ask_intent"
	CategoryProductIntent Category = "product_intent"
	CategoryExclude       Category = "exclude"
	CategorySelfPromo     Category = "self_promo"
	CategoryUrgency       Category = "urgency"
)

// patternSets maps each category to its compiled case-insensitive
// patterns. HitCount counts distinct patterns that match, not occurrences.
var patternSets = map[Category][]*regexp.Regexp{
	CategoryDemand: compilePatterns(
		`\bi need\b`,
		`\bi wish\b`,
		`\blooking for\b`,
		`\bdoes anyone know\b`,
		`\bany app\b`,
		`\bany tool\b`,
		`\bhow do i\b`,
		`\bstruggling with\b`,
		`\bproblem with\b`,
		`\bfrustrat(?:e|ed|ing)\b`,
		`\bwant (?:an|a) (?:app|tool|way)\b`,
		`\bthere should be\b`,
	),
	CategoryAskIntent: compilePatterns(
		`\bi need\b`,
		`\blooking for\b`,
		`\bdoes anyone know\b`,
		`\bneed advice\b`,
		`\bany recommendation\b`,
		`\bany app\b`,
		`\bany tool\b`,
		`\bany software\b`,
		`\bis there (?:any|a)\b`,
		`\bhow do i\b`,
		`\bcan anyone\b`,
	),
	CategoryProductIntent: compilePatterns(
		`\bapp\b`,
		`\btool\b`,
		`\bsoftware\b`,
		`\bplatform\b`,
		`\bautomation\b`,
		`\bautomate\b`,
		`\bworkflow\b`,
		`\bintegration\b`,
		`\bplugin\b`,
		`\bdashboard\b`,
		`\bextension\b`,
	),
	CategoryExclude: compilePatterns(
		`\bi will not promote\b`,
		`\blooking for (?:cofounder|co-founder|founder|partner|job)\b`,
		`\blooking for feedback\b`,
		`\broast my\b`,
		`\brate my\b`,
	),
	CategorySelfPromo: compilePatterns(
		`\bi built\b`,
		`\bi'm building\b`,
		`\bwe built\b`,
		`\blaunched\b`,
		`\blaunching\b`,
		`\bmvp\b`,
		`\bwaitlist\b`,
		`\bcofounder\b`,
		`\bco-founder\b`,
	),
	CategoryUrgency: compilePatterns(
		`\burgent\b`,
		`\basap\b`,
		`\bright now\b`,
		`\bimmediately\b`,
		`\bdeadline\b`,
		`\bblocked\b`,
	),
}

func compilePatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		out = append(out, regexp.MustCompile(`(?i)`+expr))
	}
	return out
}

// HitCount returns how many distinct patterns of the category match
// anywhere in the text. Unknown categories match nothing.
func HitCount(text string, category Category) int {
	hits := 0
	for _, p := range patternSets[category] {
		if p.MatchString(text) {
			hits++
		}
	}
	return hits
}
