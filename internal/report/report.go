// Package report persists run outputs: JSONL archives, the cluster
// document, seed ideas for the intake service, and a markdown summary.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jacksuyu/demand-signals/internal/domain"
)

const (
	runDirLayout = "20060102_150405"
	runDirSuffix = "_utc"

	// FileRawPosts holds every deduplicated post of a run, one per line.
	FileRawPosts = "raw_posts.jsonl"
	// FileCandidates holds the surviving demand candidates, one per line.
	FileCandidates = "demand_candidates.jsonl"
	// FileClusters holds the cluster document with run meta.
	FileClusters = "demand_clusters.json"
	// FileSeedIdeas holds clusters shaped for the idea-intake service.
	FileSeedIdeas = "seed_ideas.json"
	// FileMarkdown holds the human-readable run summary.
	FileMarkdown = "report.md"

	reportTopN      = 25
	seedTagLimit    = 6
	seedExampleCap  = 5
	titleWordLimit  = 12
	dirPermissions  = 0o755
	filePermissions = 0o644
)

// ClustersDocument is the on-disk shape of demand_clusters.json.
type ClustersDocument struct {
	Meta     domain.MetaSummary     `json:"meta"`
	Clusters []domain.DemandCluster `json:"clusters"`
}

// SeedBundle is the on-disk shape of seed_ideas.json.
type SeedBundle struct {
	Ideas []domain.SeedIdea `json:"ideas"`
}

// TimestampedRunDir creates base/<UTC timestamp>_utc and returns its path.
func TimestampedRunDir(base string, now time.Time) (string, error) {
	stamp := now.UTC().Format(runDirLayout) + runDirSuffix
	dir := filepath.Join(base, stamp)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}
	return dir, nil
}

// WriteRun writes all artifacts of one run into dir.
func WriteRun(dir string, posts []domain.Post, candidates []domain.DemandCandidate, clusters []domain.DemandCluster, meta domain.MetaSummary) error {
	if err := WriteJSONL(filepath.Join(dir, FileRawPosts), posts); err != nil {
		return err
	}
	if err := WriteJSONL(filepath.Join(dir, FileCandidates), candidates); err != nil {
		return err
	}
	doc := ClustersDocument{Meta: meta, Clusters: clusters}
	if err := WriteJSON(filepath.Join(dir, FileClusters), doc); err != nil {
		return err
	}
	if err := WriteJSON(filepath.Join(dir, FileSeedIdeas), BuildSeedIdeas(clusters, "reddit")); err != nil {
		return err
	}
	return WriteMarkdown(filepath.Join(dir, FileMarkdown), meta, clusters)
}

// WriteJSONL writes one JSON object per line.
func WriteJSONL[T any](path string, rows []T) error {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("encode jsonl row: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(b.String()), filePermissions); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteJSON writes payload as indented JSON.
func WriteJSON(path string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), filePermissions); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteMarkdown writes the human-readable run summary with the top
// clusters.
func WriteMarkdown(path string, meta domain.MetaSummary, clusters []domain.DemandCluster) error {
	var lines []string
	lines = append(lines,
		"# Community Demand Summary",
		"",
		"## Run Metrics",
		fmt.Sprintf("- Total posts scanned: %d", meta.TotalPosts),
		fmt.Sprintf("- Demand candidates: %d", meta.TotalCandidates),
		fmt.Sprintf("- Demand clusters: %d", meta.TotalClusters),
		"",
		"## Source Group Coverage",
	)
	for _, gc := range meta.SourceGroupPostCount {
		lines = append(lines, fmt.Sprintf("- r/%s: %d posts", gc.SourceGroup, gc.PostCount))
	}
	lines = append(lines, "", "## Top Demand Themes")

	top := clusters
	if len(top) > reportTopN {
		top = top[:reportTopN]
	}
	for i, cluster := range top {
		lines = append(lines,
			fmt.Sprintf("### %d. %s", i+1, cluster.SummaryDemand),
			fmt.Sprintf("- Cluster ID: `%s`", cluster.ClusterID),
			fmt.Sprintf("- Mentions: %d", cluster.DemandCount),
			fmt.Sprintf("- Avg confidence: %v", cluster.ConfidenceAvg),
			fmt.Sprintf("- Avg urgency: %v", cluster.UrgencyAvg),
			fmt.Sprintf("- Source groups: %s", strings.Join(cluster.Subreddits, ", ")),
			fmt.Sprintf("- Keywords: %s", strings.Join(cluster.Keywords, ", ")),
		)
		if len(cluster.Examples) > 0 {
			ex := cluster.Examples[0]
			lines = append(lines, fmt.Sprintf("- Example post: [%s](%s)", ex.Title, ex.Permalink))
		}
		lines = append(lines, "")
	}

	content := strings.TrimSpace(strings.Join(lines, "\n")) + "\n"
	if err := os.WriteFile(path, []byte(content), filePermissions); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// BuildSeedIdeas shapes clusters for the downstream idea-intake service.
func BuildSeedIdeas(clusters []domain.DemandCluster, sourceName string) SeedBundle {
	ideas := make([]domain.SeedIdea, 0, len(clusters))
	for _, cluster := range clusters {
		tags := cluster.Keywords
		if len(tags) > seedTagLimit {
			tags = tags[:seedTagLimit]
		}
		evidence := cluster.Examples
		if len(evidence) > seedExampleCap {
			evidence = evidence[:seedExampleCap]
		}
		ideas = append(ideas, domain.SeedIdea{
			Source:           sourceName,
			SourceClusterID:  cluster.ClusterID,
			Title:            TitleFromDemand(cluster.SummaryDemand),
			ProblemStatement: cluster.SummaryDemand,
			Tags:             tags,
			SignalStrength: domain.SignalStrength{
				MentionCount:  cluster.DemandCount,
				ConfidenceAvg: cluster.ConfidenceAvg,
				UrgencyAvg:    cluster.UrgencyAvg,
				Subreddits:    cluster.Subreddits,
			},
			EvidencePosts: evidence,
		})
	}
	return SeedBundle{Ideas: ideas}
}

// TitleFromDemand derives a short capitalized title from a demand
// phrase. Long phrases truncate at twelve words with a trailing
// ellipsis.
func TitleFromDemand(text string) string {
	clean := strings.Join(strings.Fields(text), " ")
	if clean == "" {
		return "Community demand"
	}
	clean = strings.TrimRight(clean, ".?!")
	words := strings.Fields(clean)
	if len(words) <= titleWordLimit {
		return capitalize(clean)
	}
	short := strings.TrimRight(strings.Join(words[:titleWordLimit], " "), ",;:")
	return capitalize(short) + "..."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
