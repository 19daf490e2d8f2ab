package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jacksuyu/demand-signals/internal/api"
	"github.com/jacksuyu/demand-signals/internal/config"
	"github.com/jacksuyu/demand-signals/internal/logging"
	"github.com/jacksuyu/demand-signals/internal/pipeline"
	"github.com/jacksuyu/demand-signals/internal/store"
	"github.com/jacksuyu/demand-signals/internal/telemetry"
)

var (
	servePort   int
	serveDBPath string
	serveDebug  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the demand-signals HTTP API",
	Long: "Start an HTTP server exposing the extraction pipeline and run history: " +
		"POST /api/v1/extract, GET /api/v1/runs, GET /api/v1/runs/:id.",
	RunE: runServe,
}

func init() {
	defaults := config.Load()
	serveCmd.Flags().IntVar(&servePort, "port", defaults.Service.Port, "Port to listen on")
	serveCmd.Flags().StringVar(&serveDBPath, "db", defaults.Service.DBPath, "SQLite path for run history")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable gin debug mode")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg := config.Load()
	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	st, err := store.Open(serveDBPath)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	tel := telemetry.NewProvider()
	runner := pipeline.NewRunner(nil, logger, tel)
	handler := api.NewHandler(runner, st, cfg.Collect, logger)
	server := api.NewServer(handler, api.ServerConfig{Port: servePort, Debug: serveDebug}, tel, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}
