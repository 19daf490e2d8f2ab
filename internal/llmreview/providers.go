package llmreview

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/jacksuyu/demand-signals/internal/config"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com"
	defaultOllamaBaseURL = "http://127.0.0.1:11434"

	openAITimeout = 180 * time.Second
	ollamaTimeout = 90 * time.Second
)

// ErrNoAPIKey indicates the OpenAI provider was selected without a key.
var ErrNoAPIKey = errors.New("OPENAI_API_KEY is not set")

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// ChooseProvider resolves the configured provider. "auto" picks OpenAI
// when an API key is present, Ollama otherwise.
func ChooseProvider(cfg config.ReviewConfig) (Provider, error) {
	name := cfg.Provider
	if name == "auto" {
		if cfg.OpenAIKey != "" {
			name = "openai"
		} else {
			name = "ollama"
		}
	}
	switch name {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, ErrNoAPIKey
		}
		return NewOpenAIProvider(cfg.OpenAIModel, cfg.OpenAIKey), nil
	case "ollama":
		return NewOllamaProvider(cfg.OllamaModel), nil
	default:
		return nil, fmt.Errorf("unknown review provider %q", cfg.Provider)
	}
}

// OpenAIProvider reviews item batches with one chat completion per
// batch, forcing a JSON object response.
type OpenAIProvider struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

// NewOpenAIProvider creates an OpenAI-backed provider.
func NewOpenAIProvider(model, apiKey string) *OpenAIProvider {
	return &OpenAIProvider{
		baseURL:    defaultOpenAIBaseURL,
		model:      model,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: openAITimeout},
	}
}

// WithBaseURL overrides the API host. Used in tests.
func (p *OpenAIProvider) WithBaseURL(u string) *OpenAIProvider {
	p.baseURL = strings.TrimRight(u, "/")
	return p
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return "openai" }

// Model implements Provider.
func (p *OpenAIProvider) Model() string { return p.model }

// Review implements Provider. The whole batch goes out in one request;
// the model answers with a {"results": [...]} object.
func (p *OpenAIProvider) Review(ctx context.Context, items []Item) ([]map[string]any, error) {
	userPrompt, err := json.Marshal(map[string]any{"items": items})
	if err != nil {
		return nil, fmt.Errorf("marshal items: %w", err)
	}

	body := map[string]any{
		"model":           p.model,
		"temperature":     0,
		"response_format": map[string]string{"type": "json_object"},
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": string(userPrompt)},
		},
	}

	var payload struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	if err := postJSON(ctx, p.httpClient, p.baseURL+"/v1/chat/completions", headers, body, &payload); err != nil {
		return nil, err
	}
	if len(payload.Choices) == 0 {
		return nil, errors.New("empty choices in completion response")
	}

	parsed, err := parseFirstJSON(payload.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	results, ok := parsed["results"]
	if !ok {
		results = parsed["items"]
	}
	list, ok := results.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected completion payload shape: %v", parsed)
	}

	out := make([]map[string]any, 0, len(list))
	for _, entry := range list {
		if m, ok := entry.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// OllamaProvider reviews items one request at a time against a local
// Ollama daemon.
type OllamaProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaProvider creates an Ollama-backed provider.
func NewOllamaProvider(model string) *OllamaProvider {
	return &OllamaProvider{
		baseURL:    defaultOllamaBaseURL,
		model:      model,
		httpClient: &http.Client{Timeout: ollamaTimeout},
	}
}

// WithBaseURL overrides the daemon host. Used in tests.
func (p *OllamaProvider) WithBaseURL(u string) *OllamaProvider {
	p.baseURL = strings.TrimRight(u, "/")
	return p
}

// Name implements Provider.
func (p *OllamaProvider) Name() string { return "ollama" }

// Model implements Provider.
func (p *OllamaProvider) Model() string { return p.model }

// Review implements Provider, sending one chat request per item.
func (p *OllamaProvider) Review(ctx context.Context, items []Item) ([]map[string]any, error) {
	prompt := systemPrompt +
		"\nFor this request, return ONE JSON object with keys:\n" +
		"cluster_id (string), accept (boolean), normalized_requirement (string), reason (string), confidence (0..1).\n" +
		"No extra keys."

	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		itemJSON, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("marshal item %s: %w", item.ClusterID, err)
		}
		body := map[string]any{
			"model":   p.model,
			"stream":  false,
			"format":  "json",
			"options": map[string]any{"temperature": 0.0, "num_predict": 400},
			"messages": []map[string]string{
				{"role": "system", "content": prompt},
				{"role": "user", "content": string(itemJSON)},
			},
		}

		var payload struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		}
		if err := postJSON(ctx, p.httpClient, p.baseURL+"/api/chat", nil, body, &payload); err != nil {
			return nil, fmt.Errorf("review %s: %w", item.ClusterID, err)
		}
		parsed, err := parseFirstJSON(payload.Message.Content)
		if err != nil {
			return nil, fmt.Errorf("review %s: %w", item.ClusterID, err)
		}
		out = append(out, parsed)
	}
	return out, nil
}

// parseFirstJSON decodes text as a JSON object, falling back to the
// first {...} span when the model wrapped it in prose.
func parseFirstJSON(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("model returned empty content")
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil {
		return obj, nil
	}

	span := jsonObjectPattern.FindString(text)
	if span == "" {
		return nil, fmt.Errorf("could not parse JSON from model output: %.200s", text)
	}
	if err := json.Unmarshal([]byte(span), &obj); err != nil {
		return nil, fmt.Errorf("could not parse JSON from model output: %w", err)
	}
	return obj, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, dst any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
