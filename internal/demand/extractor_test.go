package demand

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jacksuyu/demand-signals/internal/domain"
)

var testNow = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

func testPost(id, title, body string) domain.Post {
	return domain.Post{
		ID:          id,
		SourceGroup: "productivity",
		Title:       title,
		Body:        body,
		CreatedUTC:  float64(testNow.Add(-time.Hour).Unix()),
		Permalink:   "https://example.com/" + id,
		URL:         "https://example.com/" + id,
	}
}

func defaultOptions() ExtractOptions {
	return ExtractOptions{
		MaxAgeHours:      168,
		MinScore:         2,
		ExcludeSelfPromo: true,
		Now:              testNow,
	}
}

func TestExtractCandidates_AcceptsDemandPost(t *testing.T) {
	posts := []domain.Post{testPost("p1", "I need a tool to automate invoice reminders", "")}
	got := ExtractCandidates(posts, defaultOptions())
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}

	c := got[0]
	if c.SourcePostID != "p1" {
		t.Errorf("expected provenance p1, got %q", c.SourcePostID)
	}
	if c.ConfidenceScore < 2 {
		t.Errorf("expected confidence >= 2, got %d", c.ConfidenceScore)
	}
	if c.NormalizedText == "" {
		t.Error("expected non-empty normalized signature")
	}
	if len(c.KeywordTokens) == 0 {
		t.Error("expected keyword tokens")
	}
}

func TestExtractCandidates_AgeGate(t *testing.T) {
	post := testPost("old", "I need a tool to automate invoice reminders", "")
	post.CreatedUTC = float64(testNow.Add(-200 * time.Hour).Unix())
	if got := ExtractCandidates([]domain.Post{post}, defaultOptions()); len(got) != 0 {
		t.Errorf("expected rejection by age gate, got %d candidates", len(got))
	}
}

func TestExtractCandidates_ExclusionGate(t *testing.T) {
	post := testPost("ex", "Looking for feedback on my invoicing tool idea", "I need a tool to automate invoice reminders?")
	if got := ExtractCandidates([]domain.Post{post}, defaultOptions()); len(got) != 0 {
		t.Errorf("expected rejection by exclusion gate, got %d candidates", len(got))
	}
}

func TestExtractCandidates_SelfPromoGate(t *testing.T) {
	post := testPost("sp", "I built a waitlist app, check it out!", "I need users. Is there any tool you want?")

	if got := ExtractCandidates([]domain.Post{post}, defaultOptions()); len(got) != 0 {
		t.Errorf("expected rejection by self-promo gate, got %d candidates", len(got))
	}

	opts := defaultOptions()
	opts.ExcludeSelfPromo = false
	if got := ExtractCandidates([]domain.Post{post}, opts); len(got) != 1 {
		t.Errorf("expected acceptance with self-promo gate disabled, got %d candidates", len(got))
	}
}

func TestExtractCandidates_ConfidenceGate(t *testing.T) {
	// "any tool" gives one demand hit; no bonuses apply.
	post := testPost("low", "any tool recommendations", "")
	if got := ExtractCandidates([]domain.Post{post}, defaultOptions()); len(got) != 0 {
		t.Errorf("expected rejection below min score, got %d candidates", len(got))
	}
}

func TestExtractCandidates_ProductIntentGate(t *testing.T) {
	// Demand and ask intent without any product noun.
	post := testPost("np", "I need advice on hiring?", "Does anyone know how interviews usually go. I need help badly.")
	if got := ExtractCandidates([]domain.Post{post}, defaultOptions()); len(got) != 0 {
		t.Errorf("expected rejection by product-intent gate, got %d candidates", len(got))
	}
}

func TestExtractCandidates_RaisingMinScoreNeverAddsCandidates(t *testing.T) {
	posts := []domain.Post{
		testPost("a", "I need a tool to automate invoice reminders", ""),
		testPost("b", "Looking for any app to track habits?", "I wish there was a simple tool."),
		testPost("c", "morning walk photos", "nice weather"),
	}

	prev := len(ExtractCandidates(posts, ExtractOptions{MaxAgeHours: 168, MinScore: 0, ExcludeSelfPromo: true, Now: testNow}))
	for minScore := 1; minScore <= 6; minScore++ {
		opts := ExtractOptions{MaxAgeHours: 168, MinScore: minScore, ExcludeSelfPromo: true, Now: testNow}
		n := len(ExtractCandidates(posts, opts))
		if n > prev {
			t.Fatalf("candidate count rose from %d to %d at min_score=%d", prev, n, minScore)
		}
		prev = n
	}
}

func TestExtractCandidates_PreservesInputOrder(t *testing.T) {
	posts := []domain.Post{
		testPost("p1", "I need a tool to automate invoice reminders", ""),
		testPost("p2", "Looking for any app to track habits?", ""),
	}
	got := ExtractCandidates(posts, defaultOptions())
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].SourcePostID != "p1" || got[1].SourcePostID != "p2" {
		t.Errorf("expected input order preserved, got %q then %q", got[0].SourcePostID, got[1].SourcePostID)
	}
}

func TestExtractCandidates_TruncatesDemandText(t *testing.T) {
	long := "I need a tool to automate " + strings.Repeat("very ", 60) + "long invoice reminders"
	post := testPost("long", long, "")
	got := ExtractCandidates([]domain.Post{post}, defaultOptions())
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if n := len([]rune(got[0].DemandText)); n > maxDemandTextLen {
		t.Errorf("demand text length %d exceeds cap %d", n, maxDemandTextLen)
	}
	if !strings.HasSuffix(got[0].DemandText, truncationTrailer) {
		t.Errorf("expected truncated text to end with ellipsis, got %q", got[0].DemandText)
	}
}

func TestExtractCandidates_EmptyInput(t *testing.T) {
	if got := ExtractCandidates(nil, defaultOptions()); len(got) != 0 {
		t.Errorf("expected no candidates, got %d", len(got))
	}
}

func ExampleExtractCandidates() {
	posts := []domain.Post{{
		ID:          "t3_abc",
		SourceGroup: "SaaS",
		Title:       "I need a tool to automate invoice reminders",
		CreatedUTC:  float64(time.Now().Unix()),
	}}
	candidates := ExtractCandidates(posts, ExtractOptions{MaxAgeHours: 168, MinScore: 2, ExcludeSelfPromo: true})
	fmt.Println(len(candidates), candidates[0].NormalizedText)
	// Output: 1 automate invoice need reminders tool
}
