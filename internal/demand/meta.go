package demand

import (
	"sort"

	"github.com/jacksuyu/demand-signals/internal/domain"
)

// BuildMetaSummary computes run-level totals plus per-source-group post
// counts ordered descending by count. Ties keep first-encountered group
// order. Purely derived; empty input yields zeros.
func BuildMetaSummary(posts []domain.Post, candidates []domain.DemandCandidate, clusters []domain.DemandCluster) domain.MetaSummary {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, post := range posts {
		if _, seen := counts[post.SourceGroup]; !seen {
			order = append(order, post.SourceGroup)
		}
		counts[post.SourceGroup]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	groupCounts := make([]domain.GroupPostCount, 0, len(order))
	for _, group := range order {
		groupCounts = append(groupCounts, domain.GroupPostCount{
			SourceGroup: group,
			PostCount:   counts[group],
		})
	}

	return domain.MetaSummary{
		TotalPosts:           len(posts),
		TotalCandidates:      len(candidates),
		TotalClusters:        len(clusters),
		SourceGroupPostCount: groupCounts,
	}
}
