// Package telemetry provides Prometheus metrics and a tracer handle for
// the demand-signals pipeline.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "demand-signals"

// Metrics holds all pipeline Prometheus metrics.
type Metrics struct {
	// Fetch metrics
	PostsFetched  *prometheus.CounterVec
	FetchRetries  prometheus.Counter
	FetchFailures *prometheus.CounterVec

	// Pipeline metrics
	CandidatesExtracted prometheus.Counter
	ClustersFormed      prometheus.Counter
	ExtractionDuration  prometheus.Histogram
	ClusteringDuration  prometheus.Histogram

	// Review metrics
	ClustersReviewed *prometheus.CounterVec
}

// Provider wraps telemetry providers.
type Provider struct {
	Tracer  trace.Tracer
	Metrics *Metrics
}

// NewProvider initializes telemetry with Prometheus metrics. Metrics
// register against the default registry, so create at most one Provider
// per process.
func NewProvider() *Provider {
	return &Provider{
		Tracer:  otel.Tracer(serviceName),
		Metrics: initMetrics(),
	}
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func (p *Provider) Handler() http.Handler {
	return promhttp.Handler()
}

// RecordFetch records posts retrieved from one source group.
func (p *Provider) RecordFetch(sourceGroup string, count int) {
	p.Metrics.PostsFetched.WithLabelValues(sourceGroup).Add(float64(count))
}

// RecordExtraction records one extraction pass.
func (p *Provider) RecordExtraction(candidates int, duration time.Duration) {
	p.Metrics.CandidatesExtracted.Add(float64(candidates))
	p.Metrics.ExtractionDuration.Observe(duration.Seconds())
}

// RecordClustering records one clustering pass.
func (p *Provider) RecordClustering(clusters int, duration time.Duration) {
	p.Metrics.ClustersFormed.Add(float64(clusters))
	p.Metrics.ClusteringDuration.Observe(duration.Seconds())
}

// RecordReview records one reviewed cluster by verdict.
func (p *Provider) RecordReview(accepted bool) {
	verdict := "rejected"
	if accepted {
		verdict = "accepted"
	}
	p.Metrics.ClustersReviewed.WithLabelValues(verdict).Inc()
}

func initMetrics() *Metrics {
	m := &Metrics{}

	m.PostsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "demand_posts_fetched_total",
		Help: "Total posts fetched per source group",
	}, []string{"source_group"})

	m.FetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "demand_fetch_retries_total",
		Help: "Total fetch attempts retried after an error or rate limit",
	})

	m.FetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "demand_fetch_failures_total",
		Help: "Total fetch requests that failed after all retries",
	}, []string{"source_group"})

	m.CandidatesExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "demand_candidates_extracted_total",
		Help: "Total demand candidates surviving all extraction gates",
	})

	m.ClustersFormed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "demand_clusters_formed_total",
		Help: "Total demand clusters created",
	})

	m.ExtractionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "demand_extraction_duration_seconds",
		Help:    "Time to extract candidates from one batch of posts",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
	})

	m.ClusteringDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "demand_clustering_duration_seconds",
		Help:    "Time to cluster one batch of candidates",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
	})

	m.ClustersReviewed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "demand_clusters_reviewed_total",
		Help: "Total clusters reviewed by the LLM filter, by verdict",
	}, []string{"verdict"})

	return m
}
