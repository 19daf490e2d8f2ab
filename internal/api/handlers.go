package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jacksuyu/demand-signals/internal/config"
	"github.com/jacksuyu/demand-signals/internal/domain"
	"github.com/jacksuyu/demand-signals/internal/logging"
	"github.com/jacksuyu/demand-signals/internal/pipeline"
	"github.com/jacksuyu/demand-signals/internal/store"
)

const (
	maxExtractPosts  = 5000
	defaultRunsLimit = 50
)

// Handler handles HTTP requests for the demand-signals API.
type Handler struct {
	runner   *pipeline.Runner
	store    *store.Store
	defaults config.CollectConfig
	logger   logging.Logger
}

// NewHandler creates a new API handler.
func NewHandler(runner *pipeline.Runner, st *store.Store, defaults config.CollectConfig, logger logging.Logger) *Handler {
	return &Handler{runner: runner, store: st, defaults: defaults, logger: logger}
}

// ExtractOptions are per-request overrides of the collection defaults.
type ExtractOptions struct {
	MaxAgeHours         *int     `json:"max_age_hours"`
	MinScore            *int     `json:"min_score"`
	SimilarityThreshold *float64 `json:"similarity_threshold"`
	ExcludeSelfPromo    *bool    `json:"exclude_self_promo"`
}

// ExtractRequest carries caller-supplied posts through the extraction
// and clustering pipeline.
type ExtractRequest struct {
	Posts   []domain.Post  `json:"posts" binding:"required,min=1"`
	Options ExtractOptions `json:"options"`
}

// ExtractResponse is the pipeline outcome for one request.
type ExtractResponse struct {
	RunID      int64                  `json:"run_id,omitempty"`
	Meta       domain.MetaSummary     `json:"meta"`
	Candidates int                    `json:"candidates"`
	Clusters   []domain.DemandCluster `json:"clusters"`
}

// Extract handles POST /api/v1/extract. The caller supplies posts; the
// run is persisted and its ID returned.
func (h *Handler) Extract(c *gin.Context) {
	var req ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid extract request", logging.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Posts) > maxExtractPosts {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many posts in one request"})
		return
	}

	cfg := h.defaults
	if v := req.Options.MaxAgeHours; v != nil {
		cfg.MaxAgeHours = *v
	}
	if v := req.Options.MinScore; v != nil {
		cfg.MinScore = *v
	}
	if v := req.Options.SimilarityThreshold; v != nil {
		cfg.SimilarityThreshold = *v
	}
	if v := req.Options.ExcludeSelfPromo; v != nil {
		cfg.ExcludeSelfPromo = *v
	}

	result, err := h.runner.Process(req.Posts, cfg)
	if err != nil {
		h.logger.Error("extraction failed", logging.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := ExtractResponse{
		Meta:       result.Meta,
		Candidates: len(result.Candidates),
		Clusters:   result.Clusters,
	}
	if h.store != nil {
		runID, err := h.store.SaveRun(c.Request.Context(), time.Now(), result.Meta, result.Clusters)
		if err != nil {
			h.logger.Error("persist run failed", logging.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp.RunID = runID
	}

	h.logger.Info("extraction complete",
		logging.Int("posts", result.Meta.TotalPosts),
		logging.Int("candidates", result.Meta.TotalCandidates),
		logging.Int("clusters", result.Meta.TotalClusters))
	c.JSON(http.StatusOK, resp)
}

// ListRuns handles GET /api/v1/runs.
func (h *Handler) ListRuns(c *gin.Context) {
	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	runs, err := h.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list runs failed", logging.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "total": len(runs)})
}

// GetRun handles GET /api/v1/runs/:id.
func (h *Handler) GetRun(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run id must be an integer"})
		return
	}

	detail, err := h.store.GetRun(c.Request.Context(), id)
	if errors.Is(err, store.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		h.logger.Error("get run failed", logging.Int64("run_id", id), logging.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, detail)
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "demand-signals"})
}

// ReadyCheck handles GET /ready. Ready means the run store answers.
func (h *Handler) ReadyCheck(c *gin.Context) {
	if h.store != nil {
		if err := h.store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
