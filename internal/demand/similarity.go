package demand

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Similarity scores two normalized signatures in [0,1] as the max of a
// character-level longest-matching-block ratio and token-set Jaccard
// overlap. Symmetric, and 1.0 for identical non-empty signatures.
func Similarity(a, b string) float64 {
	seq := difflib.NewMatcher(splitChars(a), splitChars(b)).Ratio()

	aSet := tokenSet(a)
	bSet := tokenSet(b)
	if len(aSet) == 0 || len(bSet) == 0 {
		return seq
	}

	inter := 0
	for t := range aSet {
		if _, ok := bSet[t]; ok {
			inter++
		}
	}
	union := len(aSet) + len(bSet) - inter
	jaccard := float64(inter) / float64(union)

	if jaccard > seq {
		return jaccard
	}
	return seq
}

func splitChars(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "")
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
