package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// Metrics register against the default Prometheus registry, so all
// tests share one Provider.
var (
	testProvider *Provider
	providerOnce sync.Once
)

func provider() *Provider {
	providerOnce.Do(func() { testProvider = NewProvider() })
	return testProvider
}

func TestNewProvider(t *testing.T) {
	p := provider()
	if p.Tracer == nil {
		t.Error("expected tracer")
	}
	if p.Metrics == nil {
		t.Fatal("expected metrics")
	}
	if p.Metrics.PostsFetched == nil || p.Metrics.ClustersReviewed == nil {
		t.Error("expected initialized metric vectors")
	}
}

func TestProvider_RecordAndExpose(t *testing.T) {
	p := provider()
	p.RecordFetch("SaaS", 40)
	p.RecordExtraction(7, 30*time.Millisecond)
	p.RecordClustering(3, 10*time.Millisecond)
	p.RecordReview(true)
	p.RecordReview(false)

	server := httptest.NewServer(p.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("scrape metrics: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	body := string(raw)

	for _, want := range []string{
		`demand_posts_fetched_total{source_group="SaaS"}`,
		"demand_candidates_extracted_total",
		"demand_clusters_formed_total",
		`demand_clusters_reviewed_total{verdict="accepted"}`,
		`demand_clusters_reviewed_total{verdict="rejected"}`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
