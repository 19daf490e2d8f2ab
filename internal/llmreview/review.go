// Package llmreview filters demand clusters through an LLM triage pass,
// keeping only clusters that read as buildable product requirements.
package llmreview

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jacksuyu/demand-signals/internal/domain"
	"github.com/jacksuyu/demand-signals/internal/logging"
	"github.com/jacksuyu/demand-signals/internal/telemetry"
)

const (
	// FileReview holds the full review outcome for every cluster.
	FileReview = "llm_requirement_review.json"
	// FileAccepted holds only the accepted requirements, enriched.
	FileAccepted = "llm_requirement_accepted.json"
	// FileReviewMarkdown holds the human-readable review summary.
	FileReviewMarkdown = "llm_requirement_review.md"

	reviewExampleCap   = 2
	acceptedExampleCap = 3
	filePermissions    = 0o644
)

const systemPrompt = `You are a strict product requirement triage reviewer.

Goal:
- Keep ONLY items that are clearly user requirements for a product/software capability.

Accept ONLY when:
- It expresses a concrete need/problem and implies a software/tool/app/workflow solution.
- It is actionable enough for a product team to build against.

Reject when:
- Self-promotion, launch announcement, or "I built X".
- Hiring/cofounder/job-seeking.
- Generic discussion, opinion, storytelling, motivation, or reflection.
- Feedback/roast requests without a real user requirement.
- Too vague to infer a buildable requirement.

Return JSON only.
`

var runDirPattern = regexp.MustCompile(`^\d{8}_\d{6}_utc$`)

// Item is one cluster shaped for the triage prompt.
type Item struct {
	ClusterID     string                  `json:"cluster_id"`
	SummaryDemand string                  `json:"summary_demand"`
	Keywords      []string                `json:"keywords"`
	MentionCount  int                     `json:"mention_count"`
	Examples      []domain.ClusterExample `json:"examples"`
}

// Result is one normalized verdict.
type Result struct {
	ClusterID             string  `json:"cluster_id"`
	Accept                bool    `json:"accept"`
	NormalizedRequirement string  `json:"normalized_requirement"`
	Reason                string  `json:"reason"`
	Confidence            float64 `json:"confidence"`
}

// AcceptedRequirement is an accepted verdict enriched with cluster data.
type AcceptedRequirement struct {
	Result
	DemandCount   int                     `json:"demand_count"`
	SummaryDemand string                  `json:"summary_demand"`
	Keywords      []string                `json:"keywords"`
	Examples      []domain.ClusterExample `json:"examples"`
}

// ReviewDocument is the on-disk shape of llm_requirement_review.json.
type ReviewDocument struct {
	Provider      string   `json:"provider"`
	Model         string   `json:"model"`
	InputDir      string   `json:"input_dir"`
	TotalClusters int      `json:"total_clusters"`
	AcceptedCount int      `json:"accepted_count"`
	RejectedCount int      `json:"rejected_count"`
	Results       []Result `json:"results"`
}

// AcceptedDocument is the on-disk shape of llm_requirement_accepted.json.
type AcceptedDocument struct {
	Accepted []AcceptedRequirement `json:"accepted"`
}

// Provider sends review items to one LLM backend and returns its raw
// verdicts. Verdicts stay untyped here; Reviewer normalizes them.
type Provider interface {
	Name() string
	Model() string
	Review(ctx context.Context, items []Item) ([]map[string]any, error)
}

// Reviewer runs the triage pass over a run's clusters.
type Reviewer struct {
	provider  Provider
	batchSize int
	logger    logging.Logger
	telemetry *telemetry.Provider
}

// NewReviewer creates a Reviewer. telemetry may be nil.
func NewReviewer(provider Provider, batchSize int, logger logging.Logger, tel *telemetry.Provider) *Reviewer {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Reviewer{provider: provider, batchSize: batchSize, logger: logger, telemetry: tel}
}

// Review classifies every cluster and returns one verdict per cluster
// in cluster order. Clusters the provider skipped come back as default
// rejections.
func (r *Reviewer) Review(ctx context.Context, clusters []domain.DemandCluster) ([]Result, error) {
	var raw []map[string]any
	for start := 0; start < len(clusters); start += r.batchSize {
		end := start + r.batchSize
		if end > len(clusters) {
			end = len(clusters)
		}
		items := buildItems(clusters[start:end])
		r.logger.Info("reviewing cluster batch",
			logging.String("provider", r.provider.Name()),
			logging.Int("from", start),
			logging.Int("count", len(items)))

		verdicts, err := r.provider.Review(ctx, items)
		if err != nil {
			return nil, fmt.Errorf("review batch at %d: %w", start, err)
		}
		raw = append(raw, verdicts...)
	}

	byID := make(map[string]Result, len(raw))
	for _, v := range raw {
		res := normalizeResult(v)
		if res.ClusterID == "" {
			continue
		}
		byID[res.ClusterID] = res
	}

	// One verdict per cluster; missing output means reject.
	out := make([]Result, 0, len(clusters))
	for _, c := range clusters {
		res, ok := byID[c.ClusterID]
		if !ok {
			res = Result{
				ClusterID: c.ClusterID,
				Reason:    "No classifier output for this cluster",
			}
		}
		if r.telemetry != nil {
			r.telemetry.RecordReview(res.Accept)
		}
		out = append(out, res)
	}
	return out, nil
}

// WriteOutputs persists the review document, the enriched accepted
// list, and the markdown summary into dir.
func (r *Reviewer) WriteOutputs(dir string, clusters []domain.DemandCluster, results []Result) error {
	accepted, rejected := partition(results)

	doc := ReviewDocument{
		Provider:      r.provider.Name(),
		Model:         r.provider.Model(),
		InputDir:      dir,
		TotalClusters: len(clusters),
		AcceptedCount: len(accepted),
		RejectedCount: len(rejected),
		Results:       results,
	}
	if err := writeJSON(filepath.Join(dir, FileReview), doc); err != nil {
		return err
	}

	lookup := make(map[string]domain.DemandCluster, len(clusters))
	for _, c := range clusters {
		lookup[c.ClusterID] = c
	}
	enriched := make([]AcceptedRequirement, 0, len(accepted))
	for _, res := range accepted {
		c := lookup[res.ClusterID]
		examples := c.Examples
		if len(examples) > acceptedExampleCap {
			examples = examples[:acceptedExampleCap]
		}
		enriched = append(enriched, AcceptedRequirement{
			Result:        res,
			DemandCount:   c.DemandCount,
			SummaryDemand: c.SummaryDemand,
			Keywords:      c.Keywords,
			Examples:      examples,
		})
	}
	if err := writeJSON(filepath.Join(dir, FileAccepted), AcceptedDocument{Accepted: enriched}); err != nil {
		return err
	}

	return writeMarkdown(filepath.Join(dir, FileReviewMarkdown), accepted, rejected)
}

// LatestRunDir returns the newest timestamped run directory under base.
func LatestRunDir(base string) (string, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", base, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && runDirPattern.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no run directories found under %s", base)
	}
	sort.Strings(names)
	return filepath.Join(base, names[len(names)-1]), nil
}

// LoadClusters reads the cluster list from a run's demand_clusters.json.
func LoadClusters(dir string) ([]domain.DemandCluster, error) {
	path := filepath.Join(dir, "demand_clusters.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var doc struct {
		Clusters []domain.DemandCluster `json:"clusters"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(doc.Clusters) == 0 {
		return nil, fmt.Errorf("no clusters found in %s", path)
	}
	return doc.Clusters, nil
}

func buildItems(clusters []domain.DemandCluster) []Item {
	items := make([]Item, 0, len(clusters))
	for _, c := range clusters {
		examples := c.Examples
		if len(examples) > reviewExampleCap {
			examples = examples[:reviewExampleCap]
		}
		items = append(items, Item{
			ClusterID:     c.ClusterID,
			SummaryDemand: c.SummaryDemand,
			Keywords:      c.Keywords,
			MentionCount:  c.DemandCount,
			Examples:      examples,
		})
	}
	return items
}

// normalizeResult coerces one raw verdict into a Result. Models drift
// on types: accept may arrive as bool, number, or string; confidence
// sometimes comes back on a 0..10 scale.
func normalizeResult(raw map[string]any) Result {
	accept := false
	switch v := raw["accept"].(type) {
	case bool:
		accept = v
	case float64:
		accept = v != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "accept", "accepted", "1":
			accept = true
		}
	}

	confRaw, ok := raw["confidence"]
	if !ok {
		confRaw = raw["confidence_score"]
	}
	confidence := 0.0
	switch v := confRaw.(type) {
	case float64:
		confidence = v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			confidence = f
		}
	}
	if confidence > 1.0 {
		confidence = confidence / 10.0
		if confidence > 1.0 {
			confidence = 1.0
		}
	}

	return Result{
		ClusterID:             strings.TrimSpace(stringField(raw, "cluster_id")),
		Accept:                accept,
		NormalizedRequirement: strings.TrimSpace(stringField(raw, "normalized_requirement")),
		Reason:                strings.TrimSpace(stringField(raw, "reason")),
		Confidence:            confidence,
	}
}

func stringField(raw map[string]any, key string) string {
	switch v := raw[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func partition(results []Result) (accepted, rejected []Result) {
	for _, res := range results {
		if res.Accept {
			accepted = append(accepted, res)
		} else {
			rejected = append(rejected, res)
		}
	}
	return accepted, rejected
}

func writeJSON(path string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), filePermissions); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeMarkdown(path string, accepted, rejected []Result) error {
	var lines []string
	lines = append(lines,
		"# LLM Requirement Review",
		"",
		fmt.Sprintf("- Accepted: %d", len(accepted)),
		fmt.Sprintf("- Rejected: %d", len(rejected)),
		"",
		"## Accepted",
	)
	for i, res := range accepted {
		lines = append(lines,
			fmt.Sprintf("%d. `%s` - %s", i+1, res.ClusterID, res.NormalizedRequirement),
			fmt.Sprintf("   - reason: %s", res.Reason),
			fmt.Sprintf("   - confidence: %v", res.Confidence),
		)
	}
	lines = append(lines, "", "## Rejected")
	for i, res := range rejected {
		lines = append(lines,
			fmt.Sprintf("%d. `%s` - %s", i+1, res.ClusterID, res.Reason),
			fmt.Sprintf("   - confidence: %v", res.Confidence),
		)
	}

	content := strings.TrimSpace(strings.Join(lines, "\n")) + "\n"
	if err := os.WriteFile(path, []byte(content), filePermissions); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
