// Package demand implements the demand extraction and fuzzy clustering
// pipeline: heuristic pattern classification of forum posts into demand
// candidates, followed by greedy nearest-anchor clustering of candidates
// whose normalized signatures are near-identical.
package demand

import (
	"regexp"
	"sort"
	"strings"
)

// Normalization limits.
const (
	maxSignatureTokens = 24
	maxKeywordTokens   = 8
	minTokenLength     = 3
)

var (
	urlPattern        = regexp.MustCompile(`https?://\S+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	nonAlnumPattern   = regexp.MustCompile(`[^a-z0-9\s]`)
)

// stopWords are dropped from normalized signatures. Tokens shorter than
// minTokenLength are dropped regardless.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "how": {}, "i": {},
	"if": {}, "in": {}, "is": {}, "it": {}, "my": {}, "of": {},
	"on": {}, "or": {}, "that": {}, "the": {}, "this": {}, "to": {},
	"we": {}, "what": {}, "with": {}, "you": {}, "your": {},
}

// Compact collapses URLs and whitespace runs to single spaces and trims
// the result.
func Compact(text string) string {
	text = urlPattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

// SplitSentences splits compacted text on sentence-ending punctuation
// followed by whitespace. Empty input yields no sentences.
func SplitSentences(text string) []string {
	clean := Compact(text)
	if clean == "" {
		return nil
	}

	var out []string
	start := 0
	// Compact guarantees whitespace runs are single spaces.
	for i := 0; i < len(clean)-1; i++ {
		c := clean[i]
		if (c == '.' || c == '!' || c == '?') && clean[i+1] == ' ' {
			if s := strings.TrimSpace(clean[start : i+1]); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(clean[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// NormalizePhrase reduces a phrase to its canonical signature: lower-cased,
// non-alphanumerics stripped, short and stop-word tokens dropped, the rest
// deduplicated, sorted, capped at maxSignatureTokens and space-joined.
// Phrases differing only in word order or duplicate words normalize
// identically.
func NormalizePhrase(text string) string {
	lower := nonAlnumPattern.ReplaceAllString(strings.ToLower(text), " ")

	seen := make(map[string]struct{})
	tokens := make([]string, 0, maxSignatureTokens)
	for _, t := range strings.Fields(lower) {
		if len(t) < minTokenLength {
			continue
		}
		if _, stop := stopWords[t]; stop {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	if len(tokens) > maxSignatureTokens {
		tokens = tokens[:maxSignatureTokens]
	}
	return strings.Join(tokens, " ")
}

// KeywordTokens returns up to max tokens of the normalized phrase, ranked
// by frequency descending with ties broken by first occurrence in the
// normalized string.
func KeywordTokens(text string, max int) []string {
	norm := NormalizePhrase(text)
	if norm == "" {
		return nil
	}
	return topTokensByFrequency(strings.Fields(norm), max)
}

// topTokensByFrequency ranks tokens by occurrence count descending. Ties
// keep first-encountered order.
func topTokensByFrequency(tokens []string, max int) []string {
	counts := make(map[string]int, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if counts[t] == 0 {
			order = append(order, t)
		}
		counts[t]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > max {
		order = order[:max]
	}
	return order
}
