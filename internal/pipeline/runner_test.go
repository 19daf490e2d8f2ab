package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jacksuyu/demand-signals/internal/config"
	"github.com/jacksuyu/demand-signals/internal/domain"
	"github.com/jacksuyu/demand-signals/internal/logging"
)

type stubFetcher struct {
	listings map[string][]domain.Post
	searches map[string][]domain.Post
	failAll  bool
}

func (s *stubFetcher) FetchGroupPosts(_ context.Context, group, _ string, _ int) ([]domain.Post, error) {
	if s.failAll {
		return nil, errors.New("boom")
	}
	return s.listings[group], nil
}

func (s *stubFetcher) SearchGroupPosts(_ context.Context, group, query, _ string, _ int) ([]domain.Post, error) {
	if s.failAll {
		return nil, errors.New("boom")
	}
	return s.searches[group+"|"+query], nil
}

func demandPost(id, group string) domain.Post {
	return domain.Post{
		ID:          id,
		SourceGroup: group,
		Title:       "I need a tool to automate invoice reminders",
		CreatedUTC:  float64(time.Now().Add(-time.Hour).Unix()),
		Permalink:   "https://example.com/" + id,
	}
}

func collectConfig() config.CollectConfig {
	return config.CollectConfig{
		SourceGroups:        []string{"SaaS"},
		Sort:                "new",
		PerGroup:            10,
		SearchQueries:       []string{"need app"},
		SearchPerQuery:      5,
		MaxAgeHours:         168,
		MinScore:            2,
		SimilarityThreshold: 0.62,
		ExcludeSelfPromo:    true,
	}
}

func TestRunner_Run(t *testing.T) {
	fetcher := &stubFetcher{
		listings: map[string][]domain.Post{
			"SaaS": {demandPost("a", "SaaS"), demandPost("b", "SaaS")},
		},
		searches: map[string][]domain.Post{
			// "a" also surfaces in search; it must not double-count.
			"SaaS|need app": {demandPost("a", "SaaS")},
		},
	}

	runner := NewRunner(fetcher, logging.NewNop(), nil)
	result, err := runner.Run(context.Background(), collectConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Posts) != 2 {
		t.Fatalf("expected 2 deduped posts, got %d", len(result.Posts))
	}
	if len(result.Candidates) != 2 {
		t.Errorf("expected 2 candidates, got %d", len(result.Candidates))
	}
	if len(result.Clusters) != 1 {
		t.Errorf("expected 1 cluster, got %d", len(result.Clusters))
	}
	if result.Meta.TotalPosts != 2 || result.Meta.TotalClusters != 1 {
		t.Errorf("unexpected meta: %+v", result.Meta)
	}
}

func TestRunner_Run_FetchFailuresAreSkipped(t *testing.T) {
	runner := NewRunner(&stubFetcher{failAll: true}, logging.NewNop(), nil)
	result, err := runner.Run(context.Background(), collectConfig())
	if err != nil {
		t.Fatalf("expected run to survive fetch failures, got %v", err)
	}
	if len(result.Posts) != 0 {
		t.Errorf("expected no posts, got %d", len(result.Posts))
	}
	if result.Meta.TotalPosts != 0 {
		t.Errorf("expected zeroed meta, got %+v", result.Meta)
	}
}

func TestRunner_Run_HonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(&stubFetcher{}, logging.NewNop(), nil)
	if _, err := runner.Run(ctx, collectConfig()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDedupeByID(t *testing.T) {
	first := demandPost("x", "SaaS")
	updated := demandPost("x", "SaaS")
	updated.Score = 99
	other := demandPost("y", "webdev")

	got := DedupeByID([]domain.Post{first, other, updated})
	if len(got) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(got))
	}
	// First insertion position, last value.
	if got[0].ID != "x" || got[0].Score != 99 {
		t.Errorf("expected updated post x first, got %+v", got[0])
	}
	if got[1].ID != "y" {
		t.Errorf("expected post y second, got %+v", got[1])
	}
}

func TestDedupeByID_Empty(t *testing.T) {
	if got := DedupeByID(nil); len(got) != 0 {
		t.Errorf("expected empty result, got %d", len(got))
	}
}
