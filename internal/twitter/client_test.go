package twitter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jinshihui88/ai-news-collector/internal/collect"
	"github.com/jinshihui88/ai-news-collector/internal/retry"
)

func noRetry() retry.Config {
	return retry.Config{
		MaxRetries:   0,
		InitialDelay: time.Millisecond,
		ShouldRetry:  func(error) bool { return false },
	}
}

func TestClient_FetchPageParsesResponse(t *testing.T) {
	var gotQuery, gotMax, gotToken string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = q.Get("query")
		gotMax = q.Get("max_results")
		gotToken = r.Header.Get("Authorization")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": [
				{"id": "100", "text": "A longer update about a new model release today.", "author_id": "u1", "created_at": "2025-06-15T10:00:00Z", "lang": "en"}
			],
			"includes": {"users": [{"id": "u1", "username": "OpenAI", "name": "OpenAI"}]},
			"meta": {"next_token": "page2", "result_count": 1}
		}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		Endpoint:    server.URL,
		BearerToken: "token-123",
		Retry:       noRetry(),
	})

	plan := collect.Plan{Label: "OpenAI", Handle: "OpenAI", Query: "from:OpenAI lang:en"}
	res, err := client.FetchPage(context.Background(), plan, collect.PageRequest{Count: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotQuery != plan.Query {
		t.Errorf("query param = %q, want %q", gotQuery, plan.Query)
	}
	if gotMax != "10" {
		t.Errorf("max_results = %q, want 10", gotMax)
	}
	if gotToken != "Bearer token-123" {
		t.Errorf("authorization header = %q", gotToken)
	}

	if len(res.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(res.Items))
	}
	if res.NextCursor != "page2" {
		t.Errorf("next cursor = %q, want page2", res.NextCursor)
	}
	if res.Items[0].URL != "https://twitter.com/OpenAI/status/100" {
		t.Errorf("unexpected item url %q", res.Items[0].URL)
	}
}

func TestClient_PageSizeRejectionIsRecoverable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"title":"Invalid Request","detail":"max_results out of range"}]}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Endpoint: server.URL, Retry: noRetry()})

	_, err := client.FetchPage(context.Background(), collect.Plan{Query: "q"}, collect.PageRequest{Count: 100})
	if err == nil {
		t.Fatal("expected error")
	}
	if !collect.IsRecoverable(err) {
		t.Errorf("page-size rejection must be recoverable, got %v", err)
	}
}

func TestClient_ZeroMaxRetriesMeansSingleAttempt(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	// MaxRetries 0 is an intentional no-retry policy, not "unset".
	client := NewClient(ClientConfig{
		Endpoint: server.URL,
		Retry:    retry.Config{MaxRetries: 0, InitialDelay: time.Millisecond},
	})

	_, err := client.FetchPage(context.Background(), collect.Plan{Query: "q"}, collect.PageRequest{Count: 10})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly one request, got %d", calls.Load())
	}
}

func TestClient_AuthFailureIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"title":"Unauthorized"}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Endpoint: server.URL, Retry: noRetry()})

	_, err := client.FetchPage(context.Background(), collect.Plan{Query: "q"}, collect.PageRequest{Count: 10})
	if err == nil {
		t.Fatal("expected error")
	}
	if collect.IsRecoverable(err) {
		t.Error("auth failure must not be recoverable")
	}
	if !collect.IsFatal(err) {
		t.Error("auth failure must be fatal")
	}

	var httpErr *collect.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusUnauthorized {
		t.Errorf("expected HTTPError 401, got %v", err)
	}
}
