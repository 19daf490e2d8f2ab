// Package pipeline orchestrates the demand-signal collection run:
// fetch, dedupe, extract, cluster, summarize.
package pipeline

import (
	"context"
	"time"

	"github.com/jacksuyu/demand-signals/internal/config"
	"github.com/jacksuyu/demand-signals/internal/demand"
	"github.com/jacksuyu/demand-signals/internal/domain"
	"github.com/jacksuyu/demand-signals/internal/logging"
	"github.com/jacksuyu/demand-signals/internal/telemetry"
)

// Fetcher retrieves posts from a forum source.
type Fetcher interface {
	FetchGroupPosts(ctx context.Context, group, sort string, limit int) ([]domain.Post, error)
	SearchGroupPosts(ctx context.Context, group, query, sort string, limit int) ([]domain.Post, error)
}

// Result holds everything one collection run produced.
type Result struct {
	Posts      []domain.Post
	Candidates []domain.DemandCandidate
	Clusters   []domain.DemandCluster
	Meta       domain.MetaSummary
}

// Runner executes collection runs.
type Runner struct {
	fetcher   Fetcher
	logger    logging.Logger
	telemetry *telemetry.Provider
}

// NewRunner creates a Runner. telemetry may be nil.
func NewRunner(fetcher Fetcher, logger logging.Logger, tel *telemetry.Provider) *Runner {
	return &Runner{fetcher: fetcher, logger: logger, telemetry: tel}
}

// Run fetches posts from every configured source group (listing plus
// each search query), deduplicates them by post ID, and runs the
// extraction and clustering passes. A failed fetch for one group or
// query is logged and skipped; the run continues with what it has.
func (r *Runner) Run(ctx context.Context, cfg config.CollectConfig) (*Result, error) {
	var all []domain.Post
	for _, group := range cfg.SourceGroups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		posts, err := r.fetcher.FetchGroupPosts(ctx, group, cfg.Sort, cfg.PerGroup)
		if err != nil {
			r.logger.Error("listing fetch failed",
				logging.String("source_group", group),
				logging.Error(err))
			r.recordFailure(group)
		} else {
			r.logger.Info("fetched listing",
				logging.String("source_group", group),
				logging.Int("posts", len(posts)))
			r.recordFetch(group, len(posts))
			all = append(all, posts...)
		}

		for _, query := range cfg.SearchQueries {
			found, err := r.fetcher.SearchGroupPosts(ctx, group, query, cfg.Sort, cfg.SearchPerQuery)
			if err != nil {
				r.logger.Error("search fetch failed",
					logging.String("source_group", group),
					logging.String("query", query),
					logging.Error(err))
				r.recordFailure(group)
				continue
			}
			r.logger.Info("fetched search results",
				logging.String("source_group", group),
				logging.String("query", query),
				logging.Int("posts", len(found)))
			r.recordFetch(group, len(found))
			all = append(all, found...)
		}
	}

	return r.Process(all, cfg)
}

// Process runs extraction and clustering over an already-fetched post
// set. Posts sharing an ID collapse to the last occurrence, first
// insertion position.
func (r *Runner) Process(posts []domain.Post, cfg config.CollectConfig) (*Result, error) {
	deduped := DedupeByID(posts)

	start := time.Now()
	candidates := demand.ExtractCandidates(deduped, demand.ExtractOptions{
		MaxAgeHours:      cfg.MaxAgeHours,
		MinScore:         cfg.MinScore,
		ExcludeSelfPromo: cfg.ExcludeSelfPromo,
	})
	if r.telemetry != nil {
		r.telemetry.RecordExtraction(len(candidates), time.Since(start))
	}

	start = time.Now()
	clusters := demand.Cluster(candidates, cfg.SimilarityThreshold)
	if r.telemetry != nil {
		r.telemetry.RecordClustering(len(clusters), time.Since(start))
	}

	meta := demand.BuildMetaSummary(deduped, candidates, clusters)
	r.logger.Info("run complete",
		logging.Int("total_posts", meta.TotalPosts),
		logging.Int("candidates", meta.TotalCandidates),
		logging.Int("clusters", meta.TotalClusters))

	return &Result{
		Posts:      deduped,
		Candidates: candidates,
		Clusters:   clusters,
		Meta:       meta,
	}, nil
}

// DedupeByID collapses posts sharing an ID. The slot keeps its first
// insertion position but holds the last value seen for that ID.
func DedupeByID(posts []domain.Post) []domain.Post {
	index := make(map[string]int, len(posts))
	out := make([]domain.Post, 0, len(posts))
	for _, p := range posts {
		if i, ok := index[p.ID]; ok {
			out[i] = p
			continue
		}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	return out
}

func (r *Runner) recordFetch(group string, count int) {
	if r.telemetry != nil {
		r.telemetry.RecordFetch(group, count)
	}
}

func (r *Runner) recordFailure(group string) {
	if r.telemetry != nil {
		r.telemetry.Metrics.FetchFailures.WithLabelValues(group).Inc()
	}
}
