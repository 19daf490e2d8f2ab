package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jacksuyu/demand-signals/internal/config"
	"github.com/jacksuyu/demand-signals/internal/llmreview"
	"github.com/jacksuyu/demand-signals/internal/logging"
	"github.com/jacksuyu/demand-signals/internal/telemetry"
)

var (
	reviewInputDir    string
	reviewBatchSize   int
	reviewProvider    string
	reviewOllamaModel string
	reviewOpenAIModel string
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "LLM-filter demand clusters down to clear user requirements",
	Long: "Run a run directory's demand clusters through an LLM triage pass and write the " +
		"accepted requirements back into the run directory.",
	RunE: runReview,
}

func init() {
	defaults := config.Load()
	reviewCmd.Flags().StringVar(&reviewInputDir, "input-dir", "", "Run directory with demand_clusters.json (default: latest run)")
	reviewCmd.Flags().IntVar(&reviewBatchSize, "batch-size", defaults.Review.BatchSize, "Clusters per LLM request (OpenAI only)")
	reviewCmd.Flags().StringVar(&reviewProvider, "provider", defaults.Review.Provider, "LLM provider: auto, ollama, openai")
	reviewCmd.Flags().StringVar(&reviewOllamaModel, "ollama-model", defaults.Review.OllamaModel, "Ollama model name")
	reviewCmd.Flags().StringVar(&reviewOpenAIModel, "openai-model", defaults.Review.OpenAIModel, "OpenAI model name")
	rootCmd.AddCommand(reviewCmd)
}

func runReview(_ *cobra.Command, _ []string) error {
	cfg := config.Load()
	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	inputDir := reviewInputDir
	if inputDir == "" {
		inputDir, err = llmreview.LatestRunDir(cfg.Collect.OutputDir)
		if err != nil {
			return err
		}
	}

	clusters, err := llmreview.LoadClusters(inputDir)
	if err != nil {
		return err
	}

	reviewCfg := cfg.Review
	reviewCfg.Provider = reviewProvider
	reviewCfg.OllamaModel = reviewOllamaModel
	reviewCfg.OpenAIModel = reviewOpenAIModel
	provider, err := llmreview.ChooseProvider(reviewCfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reviewer := llmreview.NewReviewer(provider, reviewBatchSize, logger, telemetry.NewProvider())
	results, err := reviewer.Review(ctx, clusters)
	if err != nil {
		return fmt.Errorf("review: %w", err)
	}
	if err := reviewer.WriteOutputs(inputDir, clusters, results); err != nil {
		return err
	}

	accepted := 0
	for _, res := range results {
		if res.Accept {
			accepted++
		}
	}
	fmt.Printf("Input directory: %s\n", inputDir)
	fmt.Printf("Provider/model: %s/%s\n", provider.Name(), provider.Model())
	fmt.Printf("Accepted: %d / %d\n", accepted, len(clusters))
	return nil
}
