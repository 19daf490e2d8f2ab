// Package main provides the demand-signals command line tool.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "demandsignals",
	Short: "Collect and summarize product demand signals from community posts",
	Long: "demandsignals scans community forums for posts expressing concrete product needs, " +
		"scores and clusters them into demand themes, optionally filters them through an LLM " +
		"triage pass, and posts accepted requirements to an idea-intake service.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
