package domain

// DemandCandidate is a single post-derived record expressing a plausible
// product need. Candidates are created once by the extractor and never
// mutated afterward.
type DemandCandidate struct {
	SourcePostID string `json:"source_post_id"`
	SourceGroup  string `json:"source_group"`
	// CreatedAt is the source post's creation time in epoch seconds.
	CreatedAt       float64  `json:"created_at"`
	Title           string   `json:"title"`
	DemandText      string   `json:"demand_text"`
	NormalizedText  string   `json:"normalized_text"`
	ConfidenceScore int      `json:"confidence_score"`
	UrgencyScore    int      `json:"urgency_score"`
	KeywordTokens   []string `json:"keyword_tokens"`
	Permalink       string   `json:"permalink"`
	ResourceURL     string   `json:"resource_url"`
}

// ClusterExample is a bounded preview of one cluster member. A cluster
// keeps at most five examples in insertion order; demand_count stays exact
// regardless.
type ClusterExample struct {
	Title           string `json:"title"`
	DemandText      string `json:"demand_text"`
	SourceGroup     string `json:"source_group"`
	Permalink       string `json:"permalink"`
	ConfidenceScore int    `json:"confidence_score"`
	UrgencyScore    int    `json:"urgency_score"`
}

// DemandCluster aggregates candidates whose normalized signatures are
// near-identical. The anchor is fixed at creation: summary_demand and
// normalized_anchor always belong to the founding candidate, even when
// later members score higher.
type DemandCluster struct {
	ClusterID        string           `json:"cluster_id"`
	SummaryDemand    string           `json:"summary_demand"`
	NormalizedAnchor string           `json:"normalized_anchor"`
	DemandCount      int              `json:"demand_count"`
	ConfidenceAvg    float64          `json:"confidence_avg"`
	UrgencyAvg       float64          `json:"urgency_avg"`
	Keywords         []string         `json:"keywords"`
	Subreddits       []string         `json:"subreddits"`
	Examples         []ClusterExample `json:"examples"`
}
