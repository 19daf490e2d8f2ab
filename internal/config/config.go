// Package config holds configuration for the demand-signals commands.
package config

import (
	"os"
	"strconv"
	"time"
)

// Default configuration values.
const (
	defaultServiceName    = "demand-signals"
	defaultServiceVersion = "1.0.0"
	defaultServicePort    = 8085
	defaultLogLevel       = "info"

	defaultSort            = "new"
	defaultPerGroup        = 80
	defaultMaxAgeHours     = 168
	defaultMinScore        = 2
	defaultSimilarity      = 0.62
	defaultSearchPerQuery  = 20
	defaultOutputDir       = "data/demand_signals"
	defaultDBPath          = "data/demand_signals.db"
	defaultUserAgent       = "demand-signals/0.1"
	defaultFetchTimeout    = 20 * time.Second
	defaultFetchMaxRetries = 4

	defaultReviewProvider  = "auto"
	defaultOllamaModel     = "qwen2.5:0.5b"
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultReviewBatchSize = 15

	defaultIntakeSiteURL  = "https://jacksuyu-demandsolution-codex.hf.space"
	defaultSubmitStateRel = "data/demand_signals/posting_state.json"
	defaultSubmitTimeout  = 60 * time.Second
)

// DefaultSourceGroups are the communities scanned when none are given.
var DefaultSourceGroups = []string{
	"SaaS", "startups", "SideProject", "Entrepreneur",
	"smallbusiness", "productivity", "webdev",
}

// DefaultSearchQueries are the demand-phrase searches run per group.
var DefaultSearchQueries = []string{
	"need app", "looking for tool", "wish there was",
	"how do i automate", "any software for", "struggling with",
}

// Config holds all configuration for the demand-signals commands.
type Config struct {
	Service ServiceConfig
	Collect CollectConfig
	Fetch   FetchConfig
	Review  ReviewConfig
	Submit  SubmitConfig
	Logging LoggingConfig
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name    string
	Version string
	Port    int
	DBPath  string
}

// CollectConfig holds the extraction pipeline settings.
type CollectConfig struct {
	SourceGroups        []string
	Sort                string
	PerGroup            int
	SearchQueries       []string
	SearchPerQuery      int
	MaxAgeHours         int
	MinScore            int
	SimilarityThreshold float64
	ExcludeSelfPromo    bool
	OutputDir           string
}

// FetchConfig holds the forum fetch client settings.
type FetchConfig struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
}

// ReviewConfig holds the LLM requirement review settings.
type ReviewConfig struct {
	Provider    string // auto | ollama | openai
	OllamaModel string
	OpenAIModel string
	OpenAIKey   string
	BatchSize   int
}

// SubmitConfig holds the idea-intake submission settings.
type SubmitConfig struct {
	SiteURL   string
	StateFile string
	Timeout   time.Duration
	DryRun    bool
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string
}

// Load builds a Config from defaults and environment overrides. Command
// flags layer on top of the returned values.
func Load() *Config {
	cfg := &Config{
		Service: ServiceConfig{
			Name:    defaultServiceName,
			Version: defaultServiceVersion,
			Port:    envInt("DEMAND_PORT", defaultServicePort),
			DBPath:  envString("DEMAND_DB_PATH", defaultDBPath),
		},
		Collect: CollectConfig{
			SourceGroups:        append([]string(nil), DefaultSourceGroups...),
			Sort:                defaultSort,
			PerGroup:            defaultPerGroup,
			SearchQueries:       append([]string(nil), DefaultSearchQueries...),
			SearchPerQuery:      defaultSearchPerQuery,
			MaxAgeHours:         defaultMaxAgeHours,
			MinScore:            defaultMinScore,
			SimilarityThreshold: defaultSimilarity,
			ExcludeSelfPromo:    true,
			OutputDir:           defaultOutputDir,
		},
		Fetch: FetchConfig{
			UserAgent:  envString("REDDIT_USER_AGENT", defaultUserAgent),
			Timeout:    defaultFetchTimeout,
			MaxRetries: defaultFetchMaxRetries,
		},
		Review: ReviewConfig{
			Provider:    defaultReviewProvider,
			OllamaModel: defaultOllamaModel,
			OpenAIModel: envString("OPENAI_MODEL", defaultOpenAIModel),
			OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
			BatchSize:   defaultReviewBatchSize,
		},
		Submit: SubmitConfig{
			SiteURL:   envString("DEMAND_INTAKE_URL", defaultIntakeSiteURL),
			StateFile: defaultSubmitStateRel,
			Timeout:   defaultSubmitTimeout,
		},
		Logging: LoggingConfig{
			Level: envString("LOG_LEVEL", defaultLogLevel),
		},
	}
	return cfg
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
