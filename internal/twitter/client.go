package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jinshihui88/ai-news-collector/internal/collect"
	"github.com/jinshihui88/ai-news-collector/internal/logger"
	"github.com/jinshihui88/ai-news-collector/internal/retry"
)

const defaultEndpoint = "https://api.twitter.com/2/tweets/search/recent"

var (
	tweetFields = []string{"created_at", "lang", "source", "public_metrics", "referenced_tweets", "entities"}
	userFields  = []string{"username", "name", "profile_image_url", "verified", "description", "location"}
	expansions  = []string{"author_id"}
)

// ClientConfig wires the search client.
type ClientConfig struct {
	Endpoint    string
	BearerToken string
	Timeout     time.Duration
	StartTime   time.Time
	Retry       retry.Config
}

// Client implements collect.Fetcher against the recent-search API.
type Client struct {
	endpoint   string
	token      string
	startTime  time.Time
	httpClient *http.Client
	retryCfg   retry.Config
	log        *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	// cfg.Retry is taken as given: MaxRetries 0 means a single attempt.
	// Callers wanting backoff pass retry.DefaultConfig() or their own.
	c := &Client{
		endpoint:   endpoint,
		token:      cfg.BearerToken,
		startTime:  cfg.StartTime,
		httpClient: &http.Client{Timeout: timeout},
		retryCfg:   cfg.Retry,
		log:        logger.With("twitter"),
	}
	if c.retryCfg.OnRetry == nil {
		c.retryCfg.OnRetry = func(err error, attempt int) {
			c.log.Warn("retrying search request", "attempt", attempt, "error", err)
		}
	}
	return c
}

type tweet struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	AuthorID      string `json:"author_id"`
	CreatedAt     string `json:"created_at"`
	Lang          string `json:"lang"`
	PublicMetrics struct {
		LikeCount    int `json:"like_count"`
		ReplyCount   int `json:"reply_count"`
		RetweetCount int `json:"retweet_count"`
		QuoteCount   int `json:"quote_count"`
	} `json:"public_metrics"`
}

type apiUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type searchResponse struct {
	Data     []tweet `json:"data"`
	Includes struct {
		Users []apiUser `json:"users"`
	} `json:"includes"`
	Meta struct {
		NextToken   string `json:"next_token"`
		ResultCount int    `json:"result_count"`
	} `json:"meta"`
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// FetchPage executes one page of a search plan. Transient failures are
// retried here so the collector only sees settled outcomes.
func (c *Client) FetchPage(ctx context.Context, plan collect.Plan, req collect.PageRequest) (collect.PageResult, error) {
	return retry.DoValue(ctx, c.retryCfg, func() (collect.PageResult, error) {
		return c.fetchOnce(ctx, plan, req)
	})
}

func (c *Client) fetchOnce(ctx context.Context, plan collect.Plan, req collect.PageRequest) (collect.PageResult, error) {
	params := url.Values{}
	params.Set("query", plan.Query)
	params.Set("max_results", fmt.Sprint(req.Count))
	params.Set("tweet.fields", strings.Join(tweetFields, ","))
	params.Set("user.fields", strings.Join(userFields, ","))
	params.Set("expansions", strings.Join(expansions, ","))
	if !c.startTime.IsZero() {
		params.Set("start_time", c.startTime.UTC().Format(time.RFC3339))
	}
	if req.Cursor != "" {
		params.Set("next_token", req.Cursor)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return collect.PageResult{}, fmt.Errorf("new search request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return collect.PageResult{}, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK {
		// The API rejects too-large max_results with a 400; that class
		// is recoverable by degrading the page size.
		if resp.StatusCode == http.StatusBadRequest && strings.Contains(string(body), "max_results") {
			return collect.PageResult{}, &collect.APIError{
				Code:        "INVALID_PAGE_SIZE",
				Message:     strings.TrimSpace(string(body)),
				Recoverable: true,
			}
		}
		return collect.PageResult{}, &collect.HTTPError{
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}

	var payload searchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return collect.PageResult{}, fmt.Errorf("decode search response: %w", err)
	}

	users := map[string]*apiUser{}
	for i := range payload.Includes.Users {
		user := &payload.Includes.Users[i]
		if user.ID != "" {
			users[user.ID] = user
		}
	}

	result := collect.PageResult{
		NextCursor:     payload.Meta.NextToken,
		TotalAvailable: payload.Meta.ResultCount,
	}
	for _, t := range payload.Data {
		if item, ok := buildItem(t, users[t.AuthorID], plan); ok {
			result.Items = append(result.Items, item)
		}
	}

	return result, nil
}
