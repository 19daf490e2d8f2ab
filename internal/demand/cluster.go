package demand

import (
	"fmt"
	"math"
	"sort"

	"github.com/jacksuyu/demand-signals/internal/domain"
)

// Clustering constants.
const (
	// DefaultClusterThreshold is the merge threshold used when callers do
	// not configure one.
	DefaultClusterThreshold = 0.72

	maxClusterExamples = 5
	maxClusterKeywords = 8
	clusterIDFormat    = "demand_%03d"
	averagePrecision   = 100 // two decimals
	minAverageDivisor  = 1
)

// clusterAccum owns a cluster while it is being built. Averages are kept
// as running sums until finalization; the keyword pool keeps every member
// token so frequency ranking happens once at the end.
type clusterAccum struct {
	cluster       domain.DemandCluster
	confidenceSum int
	urgencySum    int
	keywordPool   []string
}

// Cluster groups candidates by greedy nearest-anchor assignment.
// Candidates are processed in confidence-descending order (stable for
// ties) and compared against each existing cluster's fixed anchor; the
// best match at or above threshold absorbs the candidate, otherwise the
// candidate founds a new cluster. Anchors never drift: the founding
// candidate's demand text and signature stay the cluster's summary even
// when later members score higher. Deterministic for a fixed input order
// and threshold.
func Cluster(candidates []domain.DemandCandidate, threshold float64) []domain.DemandCluster {
	ordered := make([]domain.DemandCandidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ConfidenceScore > ordered[j].ConfidenceScore
	})

	var clusters []*clusterAccum
	for i := range ordered {
		candidate := &ordered[i]

		bestIdx := -1
		bestSim := 0.0
		for idx, c := range clusters {
			// Strict > keeps the first-seen maximum on ties.
			if sim := Similarity(candidate.NormalizedText, c.cluster.NormalizedAnchor); sim > bestSim {
				bestSim = sim
				bestIdx = idx
			}
		}

		if bestIdx >= 0 && bestSim >= threshold {
			clusters[bestIdx].merge(candidate)
		} else {
			clusters = append(clusters, newClusterAccum(len(clusters)+1, candidate))
		}
	}

	out := make([]domain.DemandCluster, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, c.finalize())
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DemandCount != b.DemandCount {
			return a.DemandCount > b.DemandCount
		}
		if a.ConfidenceAvg != b.ConfidenceAvg {
			return a.ConfidenceAvg > b.ConfidenceAvg
		}
		return a.UrgencyAvg > b.UrgencyAvg
	})
	return out
}

func newClusterAccum(seq int, candidate *domain.DemandCandidate) *clusterAccum {
	return &clusterAccum{
		cluster: domain.DemandCluster{
			ClusterID:        fmt.Sprintf(clusterIDFormat, seq),
			SummaryDemand:    candidate.DemandText,
			NormalizedAnchor: candidate.NormalizedText,
			DemandCount:      1,
			Subreddits:       []string{candidate.SourceGroup},
			Examples:         []domain.ClusterExample{exampleFrom(candidate)},
		},
		confidenceSum: candidate.ConfidenceScore,
		urgencySum:    candidate.UrgencyScore,
		keywordPool:   append([]string(nil), candidate.KeywordTokens...),
	}
}

func (c *clusterAccum) merge(candidate *domain.DemandCandidate) {
	c.cluster.DemandCount++
	c.confidenceSum += candidate.ConfidenceScore
	c.urgencySum += candidate.UrgencyScore
	c.cluster.Examples = append(c.cluster.Examples, exampleFrom(candidate))
	if len(c.cluster.Examples) > maxClusterExamples {
		c.cluster.Examples = c.cluster.Examples[:maxClusterExamples]
	}
	c.cluster.Subreddits = append(c.cluster.Subreddits, candidate.SourceGroup)
	c.keywordPool = append(c.keywordPool, candidate.KeywordTokens...)
}

func (c *clusterAccum) finalize() domain.DemandCluster {
	divisor := c.cluster.DemandCount
	if divisor < minAverageDivisor {
		divisor = minAverageDivisor
	}
	c.cluster.ConfidenceAvg = round2(float64(c.confidenceSum) / float64(divisor))
	c.cluster.UrgencyAvg = round2(float64(c.urgencySum) / float64(divisor))
	c.cluster.Subreddits = dedupeSorted(c.cluster.Subreddits)
	c.cluster.Keywords = topTokensByFrequency(c.keywordPool, maxClusterKeywords)
	return c.cluster
}

func exampleFrom(candidate *domain.DemandCandidate) domain.ClusterExample {
	return domain.ClusterExample{
		Title:           candidate.Title,
		DemandText:      candidate.DemandText,
		SourceGroup:     candidate.SourceGroup,
		Permalink:       candidate.Permalink,
		ConfidenceScore: candidate.ConfidenceScore,
		UrgencyScore:    candidate.UrgencyScore,
	}
}

func round2(v float64) float64 {
	return math.Round(v*averagePrecision) / averagePrecision
}

func dedupeSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
