package domain

// SignalStrength summarizes how strongly a cluster was expressed across
// the run. It rides along with each seed idea so the intake service can
// rank submissions.
type SignalStrength struct {
	MentionCount  int      `json:"mention_count"`
	ConfidenceAvg float64  `json:"confidence_avg"`
	UrgencyAvg    float64  `json:"urgency_avg"`
	Subreddits    []string `json:"subreddits"`
}

// SeedIdea is one cluster shaped for the downstream idea-intake service.
type SeedIdea struct {
	Source           string           `json:"source"`
	SourceClusterID  string           `json:"source_cluster_id"`
	Title            string           `json:"title"`
	ProblemStatement string           `json:"problem_statement"`
	Tags             []string         `json:"tags"`
	SignalStrength   SignalStrength   `json:"signal_strength"`
	EvidencePosts    []ClusterExample `json:"evidence_posts"`
}
