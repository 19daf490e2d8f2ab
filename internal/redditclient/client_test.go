package redditclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jacksuyu/demand-signals/internal/logging"
)

func testClient(t *testing.T, serverURL string, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithBaseURL(serverURL),
		WithPageGap(time.Millisecond),
		WithBackoffUnit(time.Millisecond),
	}
	return New("demand-signals-test/0.1", 5*time.Second, logging.NewNop(), append(base, opts...)...)
}

func listingJSON(after string, posts ...string) string {
	children := ""
	for i, p := range posts {
		if i > 0 {
			children += ","
		}
		children += fmt.Sprintf(`{"data":%s}`, p)
	}
	afterJSON := "null"
	if after != "" {
		afterJSON = fmt.Sprintf("%q", after)
	}
	return fmt.Sprintf(`{"data":{"children":[%s],"after":%s}}`, children, afterJSON)
}

func TestFetchGroupPosts_Paginates(t *testing.T) {
	page := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/SaaS/new.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); ua != "demand-signals-test/0.1" {
			t.Errorf("unexpected user agent %q", ua)
		}
		page++
		w.Header().Set("Content-Type", "application/json")
		switch page {
		case 1:
			if r.URL.Query().Get("after") != "" {
				t.Errorf("first page must not carry a cursor")
			}
			fmt.Fprint(w, listingJSON("t3_cursor",
				`{"id":"a1","subreddit":"SaaS","title":"Need a billing tool","selftext":"body","created_utc":1700000000,"score":5,"num_comments":2,"upvote_ratio":0.9,"permalink":"/r/SaaS/comments/a1/","url":"https://example.com/a1"}`,
				`{"id":"a2","subreddit":"SaaS","title":"Second post","permalink":"/r/SaaS/comments/a2/"}`,
			))
		default:
			if got := r.URL.Query().Get("after"); got != "t3_cursor" {
				t.Errorf("expected cursor t3_cursor, got %q", got)
			}
			fmt.Fprint(w, listingJSON("",
				`{"id":"a3","subreddit":"SaaS","title":"Third post"}`,
				`{"id":"a4","subreddit":"SaaS","title":""}`,
			))
		}
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	posts, err := client.FetchGroupPosts(context.Background(), "SaaS", "new", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The titleless post is dropped.
	if len(posts) != 3 {
		t.Fatalf("expected 3 posts, got %d", len(posts))
	}
	first := posts[0]
	if first.ID != "a1" || first.SourceGroup != "SaaS" {
		t.Errorf("unexpected first post: %+v", first)
	}
	if first.Permalink != "https://www.reddit.com/r/SaaS/comments/a1/" {
		t.Errorf("unexpected permalink %q", first.Permalink)
	}
	if first.SortSource != "new" {
		t.Errorf("expected sort source new, got %q", first.SortSource)
	}
}

func TestFetchGroupPosts_RejectsUnknownSort(t *testing.T) {
	client := testClient(t, "http://unused.invalid")
	if _, err := client.FetchGroupPosts(context.Background(), "SaaS", "rising", 10); err == nil {
		t.Fatal("expected error for unknown sort")
	}
}

func TestSearchGroupPosts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/webdev/search.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("q") != "need app" {
			t.Errorf("expected query %q, got %q", "need app", q.Get("q"))
		}
		if q.Get("restrict_sr") != "1" {
			t.Errorf("expected restrict_sr=1, got %q", q.Get("restrict_sr"))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, listingJSON("",
			`{"id":"s1","subreddit":"webdev","title":"Is there an app for this"}`,
		))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	posts, err := client.SearchGroupPosts(context.Background(), "webdev", "need app", "new", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(posts))
	}
	if posts[0].SortSource != "search:need app" {
		t.Errorf("unexpected sort source %q", posts[0].SortSource)
	}
}

func TestClient_RetriesAfterRateLimit(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, listingJSON("",
			`{"id":"p1","subreddit":"SaaS","title":"A post"}`,
		))
	}))
	defer server.Close()

	retries := 0
	client := testClient(t, server.URL)
	client.OnRetry = func() { retries++ }

	posts, err := client.FetchGroupPosts(context.Background(), "SaaS", "new", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(posts) != 1 {
		t.Errorf("expected 1 post, got %d", len(posts))
	}
	if retries != 1 {
		t.Errorf("expected 1 retry, got %d", retries)
	}
}

func TestClient_FailsAfterRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := testClient(t, server.URL, WithMaxRetries(2))
	_, err := client.FetchGroupPosts(context.Background(), "SaaS", "new", 5)
	if !errors.Is(err, ErrExhaustedRetries) {
		t.Fatalf("expected ErrExhaustedRetries, got %v", err)
	}
}
