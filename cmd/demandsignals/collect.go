package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jacksuyu/demand-signals/internal/config"
	"github.com/jacksuyu/demand-signals/internal/logging"
	"github.com/jacksuyu/demand-signals/internal/pipeline"
	"github.com/jacksuyu/demand-signals/internal/redditclient"
	"github.com/jacksuyu/demand-signals/internal/report"
	"github.com/jacksuyu/demand-signals/internal/store"
	"github.com/jacksuyu/demand-signals/internal/telemetry"
)

var (
	collectGroups           string
	collectSort             string
	collectPerGroup         int
	collectHours            int
	collectMinScore         int
	collectSimilarity       float64
	collectOutputDir        string
	collectUserAgent        string
	collectSearchQueries    string
	collectSearchPerQuery   int
	collectIncludeSelfPromo bool
	collectDBPath           string
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Fetch posts, extract demand candidates, and cluster them",
	Long: "Fetch recent posts from the configured source groups, run the demand extraction " +
		"gates and fuzzy clustering, and write the run artifacts into a timestamped directory.",
	RunE: runCollect,
}

func init() {
	defaults := config.Load()
	collectCmd.Flags().StringVar(&collectGroups, "subreddits", strings.Join(defaults.Collect.SourceGroups, ","), "Comma-separated source group list")
	collectCmd.Flags().StringVar(&collectSort, "sort", defaults.Collect.Sort, "Listing type: new, hot, top")
	collectCmd.Flags().IntVar(&collectPerGroup, "per-subreddit", defaults.Collect.PerGroup, "Maximum posts fetched per source group")
	collectCmd.Flags().IntVar(&collectHours, "hours", defaults.Collect.MaxAgeHours, "Only include posts newer than this many hours")
	collectCmd.Flags().IntVar(&collectMinScore, "min-score", defaults.Collect.MinScore, "Minimum demand confidence score")
	collectCmd.Flags().Float64Var(&collectSimilarity, "similarity-threshold", defaults.Collect.SimilarityThreshold, "Fuzzy grouping threshold (0-1)")
	collectCmd.Flags().StringVar(&collectOutputDir, "output-dir", defaults.Collect.OutputDir, "Base output directory")
	collectCmd.Flags().StringVar(&collectUserAgent, "user-agent", defaults.Fetch.UserAgent, "HTTP User-Agent")
	collectCmd.Flags().StringVar(&collectSearchQueries, "search-queries", strings.Join(defaults.Collect.SearchQueries, ","), "Comma-separated search queries per group")
	collectCmd.Flags().IntVar(&collectSearchPerQuery, "search-per-query", defaults.Collect.SearchPerQuery, "Posts fetched per query per group")
	collectCmd.Flags().BoolVar(&collectIncludeSelfPromo, "include-self-promo", false, "Include self-promotional founder posts")
	collectCmd.Flags().StringVar(&collectDBPath, "db", defaults.Service.DBPath, "SQLite path for run history (empty disables persistence)")
	rootCmd.AddCommand(collectCmd)
}

func runCollect(_ *cobra.Command, _ []string) error {
	cfg := config.Load()
	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	groups := splitCSV(collectGroups)
	if len(groups) == 0 {
		return fmt.Errorf("at least one source group is required")
	}

	collectCfg := cfg.Collect
	collectCfg.SourceGroups = groups
	collectCfg.Sort = collectSort
	collectCfg.PerGroup = collectPerGroup
	collectCfg.SearchQueries = splitCSV(collectSearchQueries)
	collectCfg.SearchPerQuery = collectSearchPerQuery
	collectCfg.MaxAgeHours = collectHours
	collectCfg.MinScore = collectMinScore
	collectCfg.SimilarityThreshold = collectSimilarity
	collectCfg.ExcludeSelfPromo = !collectIncludeSelfPromo

	tel := telemetry.NewProvider()
	client := redditclient.New(collectUserAgent, cfg.Fetch.Timeout, logger,
		redditclient.WithMaxRetries(cfg.Fetch.MaxRetries))
	client.OnRetry = tel.Metrics.FetchRetries.Inc

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := pipeline.NewRunner(client, logger, tel)
	result, err := runner.Run(ctx, collectCfg)
	if err != nil {
		return fmt.Errorf("collection run: %w", err)
	}

	now := time.Now()
	dir, err := report.TimestampedRunDir(collectOutputDir, now)
	if err != nil {
		return err
	}
	if err := report.WriteRun(dir, result.Posts, result.Candidates, result.Clusters, result.Meta); err != nil {
		return err
	}

	if collectDBPath != "" {
		st, err := store.Open(collectDBPath)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()
		runID, err := st.SaveRun(ctx, now, result.Meta, result.Clusters)
		if err != nil {
			return err
		}
		logger.Info("run persisted", logging.Int64("run_id", runID), logging.String("db", collectDBPath))
	}

	fmt.Printf("Saved outputs to: %s\n", dir)
	fmt.Printf("Total posts: %d\n", result.Meta.TotalPosts)
	fmt.Printf("Demand candidates: %d\n", result.Meta.TotalCandidates)
	fmt.Printf("Demand clusters: %d\n", result.Meta.TotalClusters)
	return nil
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
