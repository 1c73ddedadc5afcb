package collect

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jinshihui88/ai-news-collector/internal/news"
)

// scriptedFetcher serves pages from a fixed item pool and records every
// request it sees.
type scriptedFetcher struct {
	pool     []news.Item
	requests []PageRequest
	// rejectAbove makes any request with Count above the threshold fail
	// with a recoverable page-size error.
	rejectAbove int
	// failPlans maps plan labels to a fixed error.
	failPlans map[string]error
}

func (f *scriptedFetcher) FetchPage(ctx context.Context, plan Plan, req PageRequest) (PageResult, error) {
	f.requests = append(f.requests, req)

	if err, ok := f.failPlans[plan.Label]; ok {
		return PageResult{}, err
	}
	if f.rejectAbove > 0 && req.Count > f.rejectAbove {
		return PageResult{}, &APIError{Code: "INVALID_PAGE_SIZE", Message: "max_results too large", Recoverable: true}
	}

	start := 0
	if req.Cursor != "" {
		fmt.Sscanf(req.Cursor, "%d", &start)
	}
	if start >= len(f.pool) {
		return PageResult{}, nil
	}

	end := start + req.Count
	if end > len(f.pool) {
		end = len(f.pool)
	}

	res := PageResult{Items: f.pool[start:end]}
	if end < len(f.pool) {
		res.NextCursor = fmt.Sprintf("%d", end)
	}
	return res, nil
}

func makePool(prefix string, n int) []news.Item {
	items := make([]news.Item, n)
	for i := range items {
		items[i] = news.Item{
			ID:        fmt.Sprintf("%s-%d", prefix, i),
			CreatedAt: time.Now().Add(-time.Duration(i) * time.Minute),
		}
	}
	return items
}

func TestCollector_RespectsPlanQuota(t *testing.T) {
	fetcher := &scriptedFetcher{pool: makePool("a", 100)}
	c := NewCollector(fetcher)

	items := c.Run(context.Background(), []Plan{{Label: "a", Limit: 15}}, 15)

	if len(items) != 15 {
		t.Errorf("expected 15 items, got %d", len(items))
	}
}

func TestCollector_DeduplicatesAcrossPlans(t *testing.T) {
	pool := makePool("shared", 20)
	fetcher := &scriptedFetcher{pool: pool}
	c := NewCollector(fetcher)

	plans := []Plan{
		{Label: "first", Limit: 20},
		{Label: "second", Limit: 20},
	}
	items := c.Run(context.Background(), plans, 40)

	seen := map[string]int{}
	for _, item := range items {
		seen[item.ID]++
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("item %s collected %d times", id, n)
		}
	}
	if len(items) != 20 {
		t.Errorf("expected 20 unique items, got %d", len(items))
	}
}

func TestCollector_DegradesPageSizeOnRejection(t *testing.T) {
	fetcher := &scriptedFetcher{pool: makePool("a", 30), rejectAbove: 10}
	c := NewCollector(fetcher)

	items := c.Run(context.Background(), []Plan{{Label: "a", Limit: 30}}, 30)

	if len(items) != 30 {
		t.Fatalf("expected 30 items after degradation, got %d", len(items))
	}

	// The first request of each attempted size walks down the ladder
	// until one is accepted.
	var firstCounts []int
	cursorSeen := false
	for _, req := range fetcher.requests {
		if req.Cursor == "" && !cursorSeen {
			firstCounts = append(firstCounts, req.Count)
		} else {
			cursorSeen = true
		}
	}
	if len(firstCounts) < 2 {
		t.Fatalf("expected multiple degraded attempts, got requests %+v", fetcher.requests)
	}
	for i := 1; i < len(firstCounts); i++ {
		if firstCounts[i] >= firstCounts[i-1] {
			t.Errorf("page sizes must strictly decrease, got %v", firstCounts)
		}
	}
	if last := firstCounts[len(firstCounts)-1]; last != 10 {
		t.Errorf("expected final accepted size 10, got %d", last)
	}
}

func TestCollector_FatalPlanErrorIsIsolated(t *testing.T) {
	fetcher := &scriptedFetcher{
		pool: makePool("b", 5),
		failPlans: map[string]error{
			"broken": &HTTPError{Status: 401, Body: "unauthorized"},
		},
	}
	c := NewCollector(fetcher)

	plans := []Plan{
		{Label: "broken", Limit: 10},
		{Label: "b", Limit: 5},
	}
	items := c.Run(context.Background(), plans, 15)

	if len(items) != 5 {
		t.Errorf("expected healthy plan to still collect 5 items, got %d", len(items))
	}
}

func TestCollector_StopsAtGlobalBudget(t *testing.T) {
	fetcher := &scriptedFetcher{pool: makePool("a", 100)}
	c := NewCollector(fetcher)

	plans := []Plan{
		{Label: "one", Limit: 30},
		{Label: "two", Limit: 30},
	}
	items := c.Run(context.Background(), plans, 30)

	if len(items) != 30 {
		t.Errorf("expected collection capped at budget 30, got %d", len(items))
	}
}

func TestFallbackCursor(t *testing.T) {
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	items := []news.Item{
		{ID: "a", CreatedAt: ts.Add(time.Hour)},
		{ID: "b", CreatedAt: ts},
	}

	want := fmt.Sprintf("%d", ts.UnixMilli())
	if got := fallbackCursor(items); got != want {
		t.Errorf("fallbackCursor = %q, want %q", got, want)
	}
	if got := fallbackCursor(nil); got != "" {
		t.Errorf("expected empty cursor for no items, got %q", got)
	}
	if got := fallbackCursor([]news.Item{{ID: "x"}}); got != "" {
		t.Errorf("expected empty cursor for zero timestamp, got %q", got)
	}
}
