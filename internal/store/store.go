// Package store persists collection runs in SQLite so the API can
// serve run history without re-reading run directories.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite driver

	"github.com/jacksuyu/demand-signals/internal/domain"
)

// ErrRunNotFound indicates the requested run does not exist.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at       TEXT    NOT NULL,
	total_posts      INTEGER NOT NULL,
	total_candidates INTEGER NOT NULL,
	total_clusters   INTEGER NOT NULL,
	meta_json        TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS clusters (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id         INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	cluster_id     TEXT    NOT NULL,
	summary_demand TEXT    NOT NULL,
	demand_count   INTEGER NOT NULL,
	confidence_avg REAL    NOT NULL,
	urgency_avg    REAL    NOT NULL,
	cluster_json   TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_clusters_run_id ON clusters(run_id);
`

// RunSummary is one row of run history.
type RunSummary struct {
	ID              int64  `db:"id" json:"id"`
	CreatedAt       string `db:"created_at" json:"created_at"`
	TotalPosts      int    `db:"total_posts" json:"total_posts"`
	TotalCandidates int    `db:"total_candidates" json:"total_candidates"`
	TotalClusters   int    `db:"total_clusters" json:"total_clusters"`
}

// RunDetail is a full run with its meta and clusters.
type RunDetail struct {
	RunSummary
	Meta     domain.MetaSummary     `json:"meta"`
	Clusters []domain.DemandCluster `json:"clusters"`
}

// Store is a SQLite-backed run store.
type Store struct {
	db *sqlx.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveRun persists one run with its clusters and returns the run ID.
func (s *Store) SaveRun(ctx context.Context, createdAt time.Time, meta domain.MetaSummary, clusters []domain.DemandCluster) (int64, error) {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return 0, fmt.Errorf("marshal meta: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (created_at, total_posts, total_candidates, total_clusters, meta_json)
		 VALUES (?, ?, ?, ?, ?)`,
		createdAt.UTC().Format(time.RFC3339),
		meta.TotalPosts, meta.TotalCandidates, meta.TotalClusters, string(metaJSON))
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	for _, cluster := range clusters {
		clusterJSON, err := json.Marshal(cluster)
		if err != nil {
			return 0, fmt.Errorf("marshal cluster %s: %w", cluster.ClusterID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO clusters (run_id, cluster_id, summary_demand, demand_count, confidence_avg, urgency_avg, cluster_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, cluster.ClusterID, cluster.SummaryDemand, cluster.DemandCount,
			cluster.ConfidenceAvg, cluster.UrgencyAvg, string(clusterJSON)); err != nil {
			return 0, fmt.Errorf("insert cluster %s: %w", cluster.ClusterID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}
	return runID, nil
}

// ListRuns returns run history, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit < 1 {
		limit = 50
	}
	var runs []RunSummary
	err := s.db.SelectContext(ctx, &runs,
		`SELECT id, created_at, total_posts, total_candidates, total_clusters
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run with its meta and clusters in stored order.
func (s *Store) GetRun(ctx context.Context, id int64) (*RunDetail, error) {
	var row struct {
		RunSummary
		MetaJSON string `db:"meta_json"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT id, created_at, total_posts, total_candidates, total_clusters, meta_json
		 FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %d: %w", id, err)
	}

	detail := &RunDetail{RunSummary: row.RunSummary}
	if err := json.Unmarshal([]byte(row.MetaJSON), &detail.Meta); err != nil {
		return nil, fmt.Errorf("decode meta for run %d: %w", id, err)
	}

	var clusterRows []struct {
		ClusterJSON string `db:"cluster_json"`
	}
	err = s.db.SelectContext(ctx, &clusterRows,
		`SELECT cluster_json FROM clusters WHERE run_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("load clusters for run %d: %w", id, err)
	}
	detail.Clusters = make([]domain.DemandCluster, 0, len(clusterRows))
	for _, cr := range clusterRows {
		var cluster domain.DemandCluster
		if err := json.Unmarshal([]byte(cr.ClusterJSON), &cluster); err != nil {
			return nil, fmt.Errorf("decode cluster for run %d: %w", id, err)
		}
		detail.Clusters = append(detail.Clusters, cluster)
	}
	return detail, nil
}
