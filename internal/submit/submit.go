// Package submit posts accepted requirements to the idea-intake
// service, keeping a local state file so reruns never double-post.
package submit

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jacksuyu/demand-signals/internal/domain"
	"github.com/jacksuyu/demand-signals/internal/logging"
)

// Submission statuses.
const (
	StatusPosted        = "posted"
	StatusMerged        = "merged"
	StatusAlreadyPosted = "already_posted"
	StatusFailed        = "failed"
	StatusDryRun        = "dry_run"
)

const (
	// FileCurated is checked first; a human may have pruned the accepted
	// list before posting.
	FileCurated = "llm_requirement_accepted_curated.json"
	// FileAccepted is the reviewer's raw accepted list.
	FileAccepted = "llm_requirement_accepted.json"
	// FilePosted holds the submission results as JSON.
	FilePosted = "posted_ideas.json"
	// FilePostedMarkdown holds the submission results as markdown.
	FilePostedMarkdown = "posted_ideas.md"

	rawInputTextCap = 2900
	filePermissions = 0o644
	dirPermissions  = 0o755
)

// Requirement is one accepted requirement as read from a run directory.
// Curated files carry "requirement"; reviewer output carries
// "normalized_requirement".
type Requirement struct {
	ClusterID             string                  `json:"cluster_id"`
	Requirement           string                  `json:"requirement"`
	NormalizedRequirement string                  `json:"normalized_requirement"`
	Reason                string                  `json:"reason"`
	DemandCount           int                     `json:"demand_count"`
	Examples              []domain.ClusterExample `json:"examples"`
}

// Text returns the requirement phrasing, preferring the curated field.
func (r Requirement) Text() string {
	if s := strings.TrimSpace(r.Requirement); s != "" {
		return s
	}
	return strings.TrimSpace(r.NormalizedRequirement)
}

// Result records the outcome for one requirement.
type Result struct {
	ClusterID   string `json:"cluster_id"`
	Requirement string `json:"requirement"`
	Status      string `json:"status"`
	IdeaID      string `json:"idea_id,omitempty"`
	Message     string `json:"message,omitempty"`
}

// PostedKey records a successful submission in the state file.
type PostedKey struct {
	IdeaID    string `json:"idea_id"`
	ClusterID string `json:"cluster_id"`
	PostedAt  string `json:"posted_at"`
}

// RunRecord summarizes one submission pass in the state file.
type RunRecord struct {
	RunDir       string `json:"run_dir"`
	PostedAt     string `json:"posted_at"`
	ResultsCount int    `json:"results_count"`
	PostedCount  int    `json:"posted_count"`
}

// State is the persistent posting state. The anon ID is minted once and
// reused so the intake service can attribute submissions to one
// anonymous author.
type State struct {
	AnonID     string               `json:"anon_id"`
	PostedKeys map[string]PostedKey `json:"posted_keys"`
	Runs       []RunRecord          `json:"runs"`
}

// Submitter posts requirements to the intake service.
type Submitter struct {
	siteURL    string
	stateFile  string
	httpClient *http.Client
	dryRun     bool
	logger     logging.Logger
	now        func() time.Time
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithDryRun prepares payloads without sending them.
func WithDryRun(on bool) Option {
	return func(s *Submitter) { s.dryRun = on }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Submitter) { s.now = now }
}

// New creates a Submitter targeting siteURL.
func New(siteURL, stateFile string, timeout time.Duration, logger logging.Logger, opts ...Option) *Submitter {
	s := &Submitter{
		siteURL:    strings.TrimRight(siteURL, "/"),
		stateFile:  stateFile,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit posts every accepted requirement in runDir, skipping keys the
// state file already holds, then writes the result reports into runDir.
func (s *Submitter) Submit(ctx context.Context, runDir string) ([]Result, error) {
	accepted, err := LoadAccepted(runDir)
	if err != nil {
		return nil, err
	}
	state, err := LoadState(s.stateFile)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(accepted))
	for _, item := range accepted {
		res := s.submitOne(ctx, item, &state)
		s.logger.Info("requirement processed",
			logging.String("cluster_id", res.ClusterID),
			logging.String("status", res.Status))
		results = append(results, res)
	}

	posted := 0
	for _, res := range results {
		if res.Status == StatusPosted || res.Status == StatusMerged {
			posted++
		}
	}
	state.Runs = append(state.Runs, RunRecord{
		RunDir:       runDir,
		PostedAt:     s.now().UTC().Format(time.RFC3339),
		ResultsCount: len(results),
		PostedCount:  posted,
	})

	if err := SaveState(s.stateFile, state); err != nil {
		return results, err
	}
	if err := writeReports(runDir, results, s.now().UTC()); err != nil {
		return results, err
	}
	return results, nil
}

func (s *Submitter) submitOne(ctx context.Context, item Requirement, state *State) Result {
	requirement := item.Text()
	key := RequirementKey(item)
	if prev, ok := state.PostedKeys[key]; ok {
		return Result{
			ClusterID:   item.ClusterID,
			Requirement: requirement,
			Status:      StatusAlreadyPosted,
			IdeaID:      prev.IdeaID,
			Message:     "Skipped because this requirement key already exists in posting state.",
		}
	}

	if s.dryRun {
		return Result{
			ClusterID:   item.ClusterID,
			Requirement: requirement,
			Status:      StatusDryRun,
			Message:     "Prepared payload only; not submitted.",
		}
	}

	status, body, err := s.postIdea(ctx, state.AnonID, buildPayload(item))
	if err != nil {
		return Result{
			ClusterID:   item.ClusterID,
			Requirement: requirement,
			Status:      StatusFailed,
			Message:     err.Error(),
		}
	}

	switch {
	case status == http.StatusCreated:
		ideaID := body.ideaID()
		state.PostedKeys[key] = PostedKey{
			IdeaID:    ideaID,
			ClusterID: item.ClusterID,
			PostedAt:  s.now().UTC().Format(time.RFC3339),
		}
		return Result{
			ClusterID:   item.ClusterID,
			Requirement: requirement,
			Status:      StatusPosted,
			IdeaID:      ideaID,
			Message:     "Created new idea.",
		}
	case status == http.StatusOK && body.Merged:
		ideaID := body.ideaID()
		state.PostedKeys[key] = PostedKey{
			IdeaID:    ideaID,
			ClusterID: item.ClusterID,
			PostedAt:  s.now().UTC().Format(time.RFC3339),
		}
		message := body.Message
		if message == "" {
			message = "Merged into existing idea."
		}
		return Result{
			ClusterID:   item.ClusterID,
			Requirement: requirement,
			Status:      StatusMerged,
			IdeaID:      ideaID,
			Message:     message,
		}
	default:
		return Result{
			ClusterID:   item.ClusterID,
			Requirement: requirement,
			Status:      StatusFailed,
			Message:     fmt.Sprintf("HTTP %d: %s", status, body.Raw),
		}
	}
}

type ideaResponse struct {
	Merged  bool   `json:"merged"`
	Message string `json:"message"`
	Idea    struct {
		ID string `json:"id"`
	} `json:"idea"`
	Raw string `json:"-"`
}

func (r ideaResponse) ideaID() string { return r.Idea.ID }

func (s *Submitter) postIdea(ctx context.Context, anonID string, payload map[string]any) (int, ideaResponse, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return 0, ideaResponse{}, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.siteURL+"/api/ideas", bytes.NewReader(encoded))
	if err != nil {
		return 0, ideaResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-anon-id", anonID)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, ideaResponse{}, fmt.Errorf("post idea: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 600))
	var body ideaResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		body = ideaResponse{Raw: string(raw)}
	} else {
		body.Raw = string(raw)
	}
	return resp.StatusCode, body, nil
}

func buildPayload(item Requirement) map[string]any {
	return map[string]any{
		"raw_input_text": BuildRawInputText(item),
		"target_users":   "People asking for practical productivity and workflow software tools",
		"platform":       "Any",
		"constraints":    "Prefer simple setup and low friction.",
		"source_tag":     "_social_",
		"show_name":      false,
	}
}

// RequirementKey derives the dedupe key for one requirement.
func RequirementKey(item Requirement) string {
	material := item.ClusterID + "|" + item.Text()
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}

// BuildRawInputText renders the intake prompt for one requirement,
// capped so it fits the intake field limit.
func BuildRawInputText(item Requirement) string {
	requirement := item.Text()
	lines := []string{
		"User requirement from social community: " + requirement,
		"",
		"Context:",
		"- Source: Reddit",
		fmt.Sprintf("- Mention count in this run: %d", mentionCount(item)),
	}
	if reason := strings.TrimSpace(item.Reason); reason != "" {
		lines = append(lines, "- LLM acceptance reason: "+reason)
	}
	if len(item.Examples) > 0 {
		if title := strings.TrimSpace(item.Examples[0].Title); title != "" {
			lines = append(lines, "- Evidence title: "+title)
		}
		if link := strings.TrimSpace(item.Examples[0].Permalink); link != "" {
			lines = append(lines, "- Evidence link: "+link)
		}
	}
	lines = append(lines, "", "Please generate a buildable product spec from this requirement.")

	text := strings.TrimSpace(strings.Join(lines, "\n"))
	if len(text) < 20 {
		text = strings.TrimSpace(text + " " + requirement)
	}
	if len(text) > rawInputTextCap {
		text = text[:rawInputTextCap]
	}
	return text
}

func mentionCount(item Requirement) int {
	if item.DemandCount > 0 {
		return item.DemandCount
	}
	return 1
}

// LoadAccepted reads the accepted requirements from runDir, preferring
// the curated file when present.
func LoadAccepted(runDir string) ([]Requirement, error) {
	for _, name := range []string{FileCurated, FileAccepted} {
		path := filepath.Join(runDir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var doc struct {
			Accepted []Requirement `json:"accepted"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return doc.Accepted, nil
	}
	return nil, fmt.Errorf("no accepted requirements JSON found in %s", runDir)
}

// LoadState reads the posting state, minting a fresh anonymous ID when
// the file does not exist yet.
func LoadState(path string) (State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return State{AnonID: uuid.NewString(), PostedKeys: map[string]PostedKey{}}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read %s: %w", path, err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if state.AnonID == "" {
		state.AnonID = uuid.NewString()
	}
	if state.PostedKeys == nil {
		state.PostedKeys = map[string]PostedKey{}
	}
	return state, nil
}

// SaveState writes the posting state, creating parent directories as
// needed.
func SaveState(path string, state State) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), filePermissions); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeReports(runDir string, results []Result, now time.Time) error {
	jsonPath := filepath.Join(runDir, FilePosted)
	data, err := json.MarshalIndent(map[string]any{"results": results}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	if err := os.WriteFile(jsonPath, append(data, '\n'), filePermissions); err != nil {
		return fmt.Errorf("write %s: %w", jsonPath, err)
	}

	delivered := 0
	for _, res := range results {
		switch res.Status {
		case StatusPosted, StatusMerged, StatusAlreadyPosted:
			delivered++
		}
	}
	lines := []string{
		"# Posted Requirements",
		"",
		fmt.Sprintf("- Generated at: %s", now.Format("2006-01-02 15:04:05 UTC")),
		fmt.Sprintf("- Total processed: %d", len(results)),
		fmt.Sprintf("- Posted/merged: %d", delivered),
		"",
		"## Details",
		"",
	}
	for i, res := range results {
		lines = append(lines, fmt.Sprintf("%d. `%s` - **%s**", i+1, res.ClusterID, res.Status))
		lines = append(lines, fmt.Sprintf("   - requirement: %s", res.Requirement))
		if res.Message != "" {
			lines = append(lines, fmt.Sprintf("   - message: %s", res.Message))
		}
		if res.IdeaID != "" {
			lines = append(lines, fmt.Sprintf("   - idea_id: `%s`", res.IdeaID))
		}
	}
	mdPath := filepath.Join(runDir, FilePostedMarkdown)
	content := strings.TrimSpace(strings.Join(lines, "\n")) + "\n"
	if err := os.WriteFile(mdPath, []byte(content), filePermissions); err != nil {
		return fmt.Errorf("write %s: %w", mdPath, err)
	}
	return nil
}
