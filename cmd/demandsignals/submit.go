package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jacksuyu/demand-signals/internal/config"
	"github.com/jacksuyu/demand-signals/internal/llmreview"
	"github.com/jacksuyu/demand-signals/internal/logging"
	"github.com/jacksuyu/demand-signals/internal/submit"
)

var (
	submitSiteURL   string
	submitInputDir  string
	submitStateFile string
	submitTimeoutS  int
	submitDryRun    bool
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Post accepted requirements to the idea-intake service",
	Long: "Post a run directory's accepted requirements to the idea-intake service, " +
		"skipping requirements already recorded in the posting state file.",
	RunE: runSubmit,
}

func init() {
	defaults := config.Load()
	submitCmd.Flags().StringVar(&submitSiteURL, "site-url", defaults.Submit.SiteURL, "Base URL of the idea-intake service")
	submitCmd.Flags().StringVar(&submitInputDir, "input-dir", "", "Run directory with accepted requirements (default: latest run)")
	submitCmd.Flags().StringVar(&submitStateFile, "state-file", defaults.Submit.StateFile, "Posting state file for dedupe")
	submitCmd.Flags().IntVar(&submitTimeoutS, "timeout-s", int(defaults.Submit.Timeout.Seconds()), "Request timeout in seconds")
	submitCmd.Flags().BoolVar(&submitDryRun, "dry-run", false, "Prepare payloads without posting")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(_ *cobra.Command, _ []string) error {
	cfg := config.Load()
	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	runDir := submitInputDir
	if runDir == "" {
		runDir, err = llmreview.LatestRunDir(cfg.Collect.OutputDir)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	submitter := submit.New(submitSiteURL, submitStateFile,
		time.Duration(submitTimeoutS)*time.Second, logger,
		submit.WithDryRun(submitDryRun))
	results, err := submitter.Submit(ctx, runDir)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	delivered := 0
	for _, res := range results {
		switch res.Status {
		case submit.StatusPosted, submit.StatusMerged, submit.StatusAlreadyPosted:
			delivered++
		}
	}
	fmt.Printf("Source run: %s\n", runDir)
	fmt.Printf("Target site: %s\n", submitSiteURL)
	fmt.Printf("Processed requirements: %d\n", len(results))
	fmt.Printf("Posted or merged: %d\n", delivered)
	for i, res := range results {
		fmt.Printf("%2d. [%s] %s - %.120s\n", i+1, res.ClusterID, res.Status, res.Requirement)
	}
	return nil
}
