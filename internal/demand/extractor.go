package demand

import (
	"time"

	"github.com/jacksuyu/demand-signals/internal/domain"
)

const secondsPerHour = 3600

// ExtractOptions controls the candidate extraction gates.
type ExtractOptions struct {
	// MaxAgeHours rejects posts created earlier than now minus this many
	// hours.
	MaxAgeHours int
	// MinScore is the minimum confidence score a post must reach.
	MinScore int
	// ExcludeSelfPromo enables the self-promotion gate.
	ExcludeSelfPromo bool
	// Now anchors the age gate. Zero means time.Now().
	Now time.Time
}

// ExtractCandidates applies the classification gates to each post in
// order and returns a candidate per surviving post. Gates short-circuit:
// age, exclusion, self-promotion, confidence, ask intent, product intent,
// non-empty normalized signature. Output order follows input order;
// rejection is a normal outcome, never an error.
func ExtractCandidates(posts []domain.Post, opts ExtractOptions) []domain.DemandCandidate {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	cutoff := float64(now.Unix()) - float64(opts.MaxAgeHours)*secondsPerHour

	out := make([]domain.DemandCandidate, 0, len(posts))
	for _, post := range posts {
		if post.CreatedUTC < cutoff {
			continue
		}
		combined := post.Title + " " + post.Body
		if HitCount(combined, CategoryExclude) > 0 {
			continue
		}
		if opts.ExcludeSelfPromo && HitCount(combined, CategorySelfPromo) > 0 {
			continue
		}
		confidence := ConfidenceScore(post.Title, post.Body)
		if confidence < opts.MinScore {
			continue
		}

		demandText := BestDemandSentence(post.Title, post.Body)
		if HitCount(post.Title+" "+demandText, CategoryAskIntent) == 0 {
			continue
		}
		if HitCount(post.Title+" "+demandText, CategoryProductIntent) == 0 {
			continue
		}
		source := demandText
		if source == "" {
			source = post.Title
		}
		normalized := NormalizePhrase(source)
		if normalized == "" {
			continue
		}

		out = append(out, domain.DemandCandidate{
			SourcePostID:    post.ID,
			SourceGroup:     post.SourceGroup,
			CreatedAt:       post.CreatedUTC,
			Title:           post.Title,
			DemandText:      shorten(demandText, maxDemandTextLen),
			NormalizedText:  normalized,
			ConfidenceScore: confidence,
			UrgencyScore:    UrgencyScore(post.Title, post.Body),
			KeywordTokens:   KeywordTokens(demandText, maxKeywordTokens),
			Permalink:       post.Permalink,
			ResourceURL:     post.URL,
		})
	}
	return out
}
