// Package redditclient fetches posts from Reddit's public JSON listings.
package redditclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jacksuyu/demand-signals/internal/domain"
	"github.com/jacksuyu/demand-signals/internal/logging"
)

const (
	defaultBaseURL = "https://www.reddit.com"
	maxPageLimit   = 100
	pageGap        = 600 * time.Millisecond

	// Waits after a 429 grow by two backoff units per attempt, capped here.
	maxRateLimitUnits = 12
)

// ErrExhaustedRetries indicates a request failed after all retry attempts.
var ErrExhaustedRetries = errors.New("request failed after retries")

var validSorts = map[string]bool{"new": true, "hot": true, "top": true}

// Client fetches posts from the public listing endpoints. Pages are
// paced with a rate limiter and failed requests retry with a linear
// backoff.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	maxRetries int
	limiter    *rate.Limiter
	backoff    time.Duration
	logger     logging.Logger

	// OnRetry is called once per retried request, if set.
	OnRetry func()
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the listing host. Used in tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithMaxRetries sets the per-request attempt cap.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithPageGap sets the minimum delay between listing pages.
func WithPageGap(d time.Duration) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Every(d), 1) }
}

// WithBackoffUnit scales retry waits. Used in tests.
func WithBackoffUnit(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// New creates a Client identifying itself with the given user agent.
func New(userAgent string, timeout time.Duration, logger logging.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		maxRetries: 4,
		limiter:    rate.NewLimiter(rate.Every(pageGap), 1),
		backoff:    time.Second,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchGroupPosts retrieves up to limit posts from one community's
// listing, paginating with the "after" cursor. sort must be one of
// new, hot, top.
func (c *Client) FetchGroupPosts(ctx context.Context, group, sort string, limit int) ([]domain.Post, error) {
	if !validSorts[sort] {
		return nil, fmt.Errorf("sort must be one of new, hot, top: got %q", sort)
	}
	endpoint := fmt.Sprintf("%s/r/%s/%s.json", c.baseURL, url.PathEscape(group), sort)
	return c.paginate(ctx, endpoint, group, sort, limit, nil)
}

// SearchGroupPosts retrieves up to limit posts matching query within
// one community. Results carry a "search:<query>" sort source.
func (c *Client) SearchGroupPosts(ctx context.Context, group, query, sort string, limit int) ([]domain.Post, error) {
	endpoint := fmt.Sprintf("%s/r/%s/search.json", c.baseURL, url.PathEscape(group))
	extra := url.Values{
		"q":           {query},
		"restrict_sr": {"1"},
		"sort":        {sort},
	}
	return c.paginate(ctx, endpoint, group, "search:"+query, limit, extra)
}

func (c *Client) paginate(ctx context.Context, endpoint, group, sortSource string, limit int, extra url.Values) ([]domain.Post, error) {
	var out []domain.Post
	after := ""
	remaining := limit
	if remaining < 1 {
		remaining = 1
	}

	for remaining > 0 {
		if err := c.limiter.Wait(ctx); err != nil {
			return out, err
		}

		pageLimit := remaining
		if pageLimit > maxPageLimit {
			pageLimit = maxPageLimit
		}
		params := url.Values{
			"limit":    {strconv.Itoa(pageLimit)},
			"raw_json": {"1"},
		}
		for k, vs := range extra {
			params[k] = vs
		}
		if after != "" {
			params.Set("after", after)
		}

		var payload listingPayload
		if err := c.requestJSON(ctx, endpoint+"?"+params.Encode(), &payload); err != nil {
			return out, err
		}

		for _, child := range payload.Data.Children {
			post := child.Data.toPost(group, sortSource)
			if post.ID == "" || post.Title == "" {
				continue
			}
			out = append(out, post)
		}

		after = payload.Data.After
		if after == "" || len(payload.Data.Children) == 0 {
			break
		}
		remaining -= len(payload.Data.Children)
	}
	return out, nil
}

func (c *Client) requestJSON(ctx context.Context, rawURL string, dst any) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		err := c.doOnce(ctx, rawURL, dst)
		if err == nil {
			return nil
		}
		lastErr = err

		var wait time.Duration
		var rle *rateLimitError
		if errors.As(err, &rle) {
			wait = time.Duration(2*attempt) * c.backoff
			if ceiling := maxRateLimitUnits * c.backoff; wait > ceiling {
				wait = ceiling
			}
		} else if attempt < c.maxRetries {
			wait = time.Duration(float64(attempt) * 1.3 * float64(c.backoff))
		} else {
			break
		}

		if c.OnRetry != nil {
			c.OnRetry()
		}
		c.logger.Warn("listing request retrying",
			logging.String("url", rawURL),
			logging.Int("attempt", attempt),
			logging.Duration("wait", wait),
			logging.Error(err))
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrExhaustedRetries, rawURL, lastErr)
}

func (c *Client) doOnce(ctx context.Context, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &rateLimitError{}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type rateLimitError struct{}

func (*rateLimitError) Error() string { return "rate limited (429)" }

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type listingPayload struct {
	Data listingData `json:"data"`
}

type listingData struct {
	Children []listingChild `json:"children"`
	After    string         `json:"after"`
}

type listingChild struct {
	Data listingPost `json:"data"`
}

type listingPost struct {
	ID          string  `json:"id"`
	Subreddit   string  `json:"subreddit"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	CreatedUTC  float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	UpvoteRatio float64 `json:"upvote_ratio"`
	Permalink   string  `json:"permalink"`
	URL         string  `json:"url"`
}

func (p listingPost) toPost(group, sortSource string) domain.Post {
	sourceGroup := p.Subreddit
	if sourceGroup == "" {
		sourceGroup = group
	}
	return domain.Post{
		ID:          p.ID,
		SourceGroup: sourceGroup,
		Title:       strings.TrimSpace(p.Title),
		Body:        strings.TrimSpace(p.Selftext),
		Author:      p.Author,
		CreatedUTC:  p.CreatedUTC,
		Score:       p.Score,
		NumComments: p.NumComments,
		UpvoteRatio: p.UpvoteRatio,
		Permalink:   defaultBaseURL + p.Permalink,
		URL:         p.URL,
		SortSource:  sortSource,
	}
}
