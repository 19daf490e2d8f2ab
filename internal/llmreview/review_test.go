package llmreview

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jacksuyu/demand-signals/internal/config"
	"github.com/jacksuyu/demand-signals/internal/domain"
	"github.com/jacksuyu/demand-signals/internal/logging"
)

type stubProvider struct {
	calls    [][]Item
	verdicts []map[string]any
}

func (s *stubProvider) Name() string  { return "stub" }
func (s *stubProvider) Model() string { return "stub-model" }

func (s *stubProvider) Review(_ context.Context, items []Item) ([]map[string]any, error) {
	s.calls = append(s.calls, items)
	var out []map[string]any
	for _, item := range items {
		for _, v := range s.verdicts {
			if v["cluster_id"] == item.ClusterID {
				out = append(out, v)
			}
		}
	}
	return out, nil
}

func reviewCluster(id string) domain.DemandCluster {
	return domain.DemandCluster{
		ClusterID:     id,
		SummaryDemand: "I need a tool to automate invoice reminders",
		DemandCount:   3,
		Keywords:      []string{"tool", "invoice"},
		Examples: []domain.ClusterExample{
			{Title: "one"}, {Title: "two"}, {Title: "three"}, {Title: "four"},
		},
	}
}

func TestReviewer_Review_BatchesAndBackfills(t *testing.T) {
	provider := &stubProvider{
		verdicts: []map[string]any{
			{"cluster_id": "demand_001", "accept": true, "normalized_requirement": "Automated invoice reminders", "confidence": 0.9},
			{"cluster_id": "demand_003", "accept": false, "reason": "self promo", "confidence": 0.8},
		},
	}
	clusters := []domain.DemandCluster{
		reviewCluster("demand_001"), reviewCluster("demand_002"), reviewCluster("demand_003"),
	}

	reviewer := NewReviewer(provider, 2, logging.NewNop(), nil)
	results, err := reviewer.Review(context.Background(), clusters)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(provider.calls) != 2 {
		t.Errorf("expected 2 batches, got %d", len(provider.calls))
	}
	if len(provider.calls[0]) != 2 || len(provider.calls[1]) != 1 {
		t.Errorf("unexpected batch sizes: %d, %d", len(provider.calls[0]), len(provider.calls[1]))
	}
	// Prompt items carry at most two examples.
	if n := len(provider.calls[0][0].Examples); n != 2 {
		t.Errorf("expected 2 prompt examples, got %d", n)
	}

	if len(results) != 3 {
		t.Fatalf("expected one verdict per cluster, got %d", len(results))
	}
	if !results[0].Accept || results[0].NormalizedRequirement != "Automated invoice reminders" {
		t.Errorf("unexpected first verdict: %+v", results[0])
	}
	// demand_002 got no output and defaults to rejection.
	if results[1].Accept {
		t.Error("expected default rejection for unreviewed cluster")
	}
	if results[1].Reason != "No classifier output for this cluster" {
		t.Errorf("unexpected backfill reason %q", results[1].Reason)
	}
	if results[2].Accept {
		t.Error("expected explicit rejection for demand_003")
	}
}

func TestNormalizeResult_Coercions(t *testing.T) {
	tests := []struct {
		name       string
		raw        map[string]any
		wantAccept bool
		wantConf   float64
	}{
		{"bool accept", map[string]any{"cluster_id": "c", "accept": true, "confidence": 0.5}, true, 0.5},
		{"numeric accept", map[string]any{"cluster_id": "c", "accept": float64(1), "confidence": 0.5}, true, 0.5},
		{"string accept", map[string]any{"cluster_id": "c", "accept": "Yes", "confidence": 0.5}, true, 0.5},
		{"string reject", map[string]any{"cluster_id": "c", "accept": "nope", "confidence": 0.5}, false, 0.5},
		{"ten scale confidence", map[string]any{"cluster_id": "c", "accept": true, "confidence": float64(8)}, true, 0.8},
		{"overflow clamps", map[string]any{"cluster_id": "c", "accept": true, "confidence": float64(25)}, true, 1.0},
		{"string confidence", map[string]any{"cluster_id": "c", "accept": true, "confidence": "0.7"}, true, 0.7},
		{"fallback key", map[string]any{"cluster_id": "c", "accept": true, "confidence_score": 0.3}, true, 0.3},
		{"missing everything", map[string]any{"cluster_id": "c"}, false, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeResult(tt.raw)
			if got.Accept != tt.wantAccept {
				t.Errorf("accept = %v, want %v", got.Accept, tt.wantAccept)
			}
			if got.Confidence != tt.wantConf {
				t.Errorf("confidence = %v, want %v", got.Confidence, tt.wantConf)
			}
		})
	}
}

func TestParseFirstJSON(t *testing.T) {
	obj, err := parseFirstJSON(`{"accept": true}`)
	if err != nil || obj["accept"] != true {
		t.Errorf("plain object: %v, %v", obj, err)
	}

	obj, err = parseFirstJSON("Sure! Here is the verdict:\n{\"accept\": false}\nHope that helps.")
	if err != nil || obj["accept"] != false {
		t.Errorf("wrapped object: %v, %v", obj, err)
	}

	if _, err := parseFirstJSON("   "); err == nil {
		t.Error("expected error for empty content")
	}
	if _, err := parseFirstJSON("no json here"); err == nil {
		t.Error("expected error for prose without JSON")
	}
}

func TestReviewer_WriteOutputs(t *testing.T) {
	dir := t.TempDir()
	clusters := []domain.DemandCluster{reviewCluster("demand_001"), reviewCluster("demand_002")}
	results := []Result{
		{ClusterID: "demand_001", Accept: true, NormalizedRequirement: "Automated invoice reminders", Reason: "clear need", Confidence: 0.9},
		{ClusterID: "demand_002", Reason: "vague", Confidence: 0.4},
	}

	reviewer := NewReviewer(&stubProvider{}, 15, logging.NewNop(), nil)
	if err := reviewer.WriteOutputs(dir, clusters, results); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, FileReview))
	if err != nil {
		t.Fatalf("read review: %v", err)
	}
	var doc ReviewDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode review: %v", err)
	}
	if doc.TotalClusters != 2 || doc.AcceptedCount != 1 || doc.RejectedCount != 1 {
		t.Errorf("unexpected review counts: %+v", doc)
	}

	data, err = os.ReadFile(filepath.Join(dir, FileAccepted))
	if err != nil {
		t.Fatalf("read accepted: %v", err)
	}
	var acceptedDoc AcceptedDocument
	if err := json.Unmarshal(data, &acceptedDoc); err != nil {
		t.Fatalf("decode accepted: %v", err)
	}
	if len(acceptedDoc.Accepted) != 1 {
		t.Fatalf("expected 1 accepted requirement, got %d", len(acceptedDoc.Accepted))
	}
	item := acceptedDoc.Accepted[0]
	if item.DemandCount != 3 || item.SummaryDemand == "" {
		t.Errorf("expected enriched cluster data, got %+v", item)
	}
	if len(item.Examples) != 3 {
		t.Errorf("expected accepted examples capped at 3, got %d", len(item.Examples))
	}

	md, err := os.ReadFile(filepath.Join(dir, FileReviewMarkdown))
	if err != nil {
		t.Fatalf("read markdown: %v", err)
	}
	for _, want := range []string{"# LLM Requirement Review", "- Accepted: 1", "- Rejected: 1", "`demand_001` - Automated invoice reminders"} {
		if !strings.Contains(string(md), want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestLatestRunDir(t *testing.T) {
	base := t.TempDir()
	for _, name := range []string{"20260810_120000_utc", "20260820_093015_utc", "notes", "20260815_000000_utc"} {
		if err := os.Mkdir(filepath.Join(base, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	dir, err := LatestRunDir(base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(dir) != "20260820_093015_utc" {
		t.Errorf("expected newest run dir, got %q", dir)
	}
}

func TestLatestRunDir_Empty(t *testing.T) {
	if _, err := LatestRunDir(t.TempDir()); err == nil {
		t.Error("expected error for base without run dirs")
	}
}

func TestChooseProvider(t *testing.T) {
	if _, err := ChooseProvider(config.ReviewConfig{Provider: "openai"}); err == nil {
		t.Error("expected error for openai without key")
	}

	p, err := ChooseProvider(config.ReviewConfig{Provider: "auto", OllamaModel: "m"})
	if err != nil || p.Name() != "ollama" {
		t.Errorf("expected auto to fall back to ollama, got %v, %v", p, err)
	}

	p, err = ChooseProvider(config.ReviewConfig{Provider: "auto", OpenAIKey: "sk-test", OpenAIModel: "m"})
	if err != nil || p.Name() != "openai" {
		t.Errorf("expected auto with key to pick openai, got %v, %v", p, err)
	}

	if _, err := ChooseProvider(config.ReviewConfig{Provider: "bard"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
