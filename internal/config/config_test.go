package config

import (
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Service.Port != 8085 {
		t.Errorf("expected default port 8085, got %d", cfg.Service.Port)
	}
	if cfg.Collect.MaxAgeHours != 168 {
		t.Errorf("expected default max age 168h, got %d", cfg.Collect.MaxAgeHours)
	}
	if cfg.Collect.MinScore != 2 {
		t.Errorf("expected default min score 2, got %d", cfg.Collect.MinScore)
	}
	if cfg.Collect.SimilarityThreshold != 0.62 {
		t.Errorf("expected default similarity 0.62, got %f", cfg.Collect.SimilarityThreshold)
	}
	if !cfg.Collect.ExcludeSelfPromo {
		t.Error("expected self-promo exclusion on by default")
	}
	if len(cfg.Collect.SourceGroups) == 0 || len(cfg.Collect.SearchQueries) == 0 {
		t.Error("expected default source groups and search queries")
	}
	if cfg.Review.Provider != "auto" {
		t.Errorf("expected auto review provider, got %q", cfg.Review.Provider)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DEMAND_PORT", "9000")
	t.Setenv("REDDIT_USER_AGENT", "custom-agent/1.0")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()
	if cfg.Service.Port != 9000 {
		t.Errorf("expected port override 9000, got %d", cfg.Service.Port)
	}
	if cfg.Fetch.UserAgent != "custom-agent/1.0" {
		t.Errorf("expected user agent override, got %q", cfg.Fetch.UserAgent)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level override, got %q", cfg.Logging.Level)
	}
}

func TestLoad_BadIntEnvFallsBack(t *testing.T) {
	t.Setenv("DEMAND_PORT", "not-a-port")
	if cfg := Load(); cfg.Service.Port != 8085 {
		t.Errorf("expected fallback port 8085, got %d", cfg.Service.Port)
	}
}
