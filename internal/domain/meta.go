package domain

// GroupPostCount pairs a source group with the number of posts scanned
// from it. A slice of pairs is used instead of a map so the
// descending-by-count order survives serialization.
type GroupPostCount struct {
	SourceGroup string `json:"source_group"`
	PostCount   int    `json:"post_count"`
}

// MetaSummary holds run-level statistics across posts, candidates and
// clusters.
type MetaSummary struct {
	TotalPosts           int              `json:"total_posts"`
	TotalCandidates      int              `json:"total_candidates"`
	TotalClusters        int              `json:"total_clusters"`
	SourceGroupPostCount []GroupPostCount `json:"source_group_post_counts"`
}
