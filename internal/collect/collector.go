package collect

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/jinshihui88/ai-news-collector/internal/logger"
	"github.com/jinshihui88/ai-news-collector/internal/metrics"
	"github.com/jinshihui88/ai-news-collector/internal/news"
)

const (
	// MinPageSize is the smallest page the upstream search APIs accept.
	MinPageSize = 10
	// MaxPageSize is the largest page they accept.
	MaxPageSize = 100
)

// pageSizeCandidates is the descending ladder tried when the API
// rejects a page size as too large.
var pageSizeCandidates = []int{50, 40, 30, 20, 10}

// PageRequest asks a Fetcher for one page of a plan's results.
type PageRequest struct {
	Count  int
	Cursor string
}

// PageResult is one page of normalized items plus pagination metadata.
type PageResult struct {
	Items          []news.Item
	NextCursor     string
	TotalAvailable int
}

// Fetcher executes one page request for a plan. Implementations
// surface recoverable rejections as *APIError with Recoverable set and
// auth failures as fatal errors.
type Fetcher interface {
	FetchPage(ctx context.Context, plan Plan, req PageRequest) (PageResult, error)
}

// Collector drives plans through paginated requests, deduplicating by
// item ID across pages and across plans within one run. The seen set
// is append-only for the run and never persisted.
type Collector struct {
	fetcher Fetcher
	seen    map[string]struct{}
	log     *slog.Logger
}

func NewCollector(fetcher Fetcher) *Collector {
	return &Collector{
		fetcher: fetcher,
		seen:    map[string]struct{}{},
		log:     logger.With("collector"),
	}
}

// Run executes plans sequentially in list order. Once the running
// total reaches totalLimit, remaining plans are skipped entirely. A
// fatal plan error is logged and isolated; collection proceeds with
// the next plan.
func (c *Collector) Run(ctx context.Context, plans []Plan, totalLimit int) []news.Item {
	collected := []news.Item{}

	for _, plan := range plans {
		if len(collected) >= totalLimit {
			c.log.Info("global budget reached, skipping remaining plans",
				"collected", len(collected), "budget", totalLimit)
			break
		}

		quota := plan.Limit
		if remaining := totalLimit - len(collected); quota > remaining {
			quota = remaining
		}

		items, err := c.collectPlan(ctx, plan, quota)
		if err != nil {
			metrics.Global.IncrementPlansFailed()
			c.log.Error("plan failed", "plan", plan.Label, "error", err)
			continue
		}

		c.log.Info("plan collected", "plan", plan.Label, "items", len(items))
		collected = append(collected, items...)
	}

	metrics.Global.AddItemsCollected(int64(len(collected)))
	return collected
}

// collectPlan walks the page-size ladder for one plan. On a
// recoverable API error the next smaller size is tried from scratch;
// when all sizes are exhausted the last recoverable error is raised.
func (c *Collector) collectPlan(ctx context.Context, plan Plan, quota int) ([]news.Item, error) {
	var lastErr error

	for _, size := range pageSizes(quota) {
		items, err := c.fetchPages(ctx, plan, size, quota)
		if err == nil {
			// Commit to the run-wide dedup set only after the plan
			// succeeded, so a degraded restart can re-collect.
			for _, item := range items {
				c.seen[item.ID] = struct{}{}
			}
			return items, nil
		}

		if !IsRecoverable(err) {
			return nil, err
		}

		lastErr = err
		c.log.Warn("recoverable api error, degrading page size",
			"plan", plan.Label, "pageSize", size, "error", err)
	}

	return nil, lastErr
}

// fetchPages pages through one plan at a fixed preferred page size
// until the quota is met, the upstream is exhausted, or an error
// surfaces.
func (c *Collector) fetchPages(ctx context.Context, plan Plan, size, quota int) ([]news.Item, error) {
	var items []news.Item
	staged := map[string]struct{}{}
	cursor := ""

	for len(items) < quota {
		remaining := quota - len(items)
		count := remaining
		if count < MinPageSize {
			count = MinPageSize
		}
		if count > size {
			count = size
		}
		count = clamp(count, MinPageSize, MaxPageSize)

		res, err := c.fetcher.FetchPage(ctx, plan, PageRequest{Count: count, Cursor: cursor})
		if err != nil {
			return nil, err
		}

		if len(res.Items) == 0 {
			c.log.Debug("plan exhausted", "plan", plan.Label)
			break
		}

		for _, item := range res.Items {
			if len(items) >= quota {
				break
			}
			if _, dup := c.seen[item.ID]; dup {
				metrics.Global.IncrementDuplicatesDropped()
				continue
			}
			if _, dup := staged[item.ID]; dup {
				metrics.Global.IncrementDuplicatesDropped()
				continue
			}
			staged[item.ID] = struct{}{}
			items = append(items, item)
		}

		if len(items) >= quota {
			break
		}

		// An explicit continuation cursor wins; otherwise derive one
		// from the last item's timestamp so an all-duplicate page
		// still advances instead of stalling.
		next := res.NextCursor
		if next == "" {
			next = fallbackCursor(res.Items)
		}
		if next == "" || next == cursor {
			break
		}
		cursor = next
		c.log.Debug("next page", "plan", plan.Label, "cursor", cursor)
	}

	return items, nil
}

// pageSizes returns the descending candidate sizes for a plan, each
// floor-capped by the plan's quota.
func pageSizes(quota int) []int {
	limit := quota
	if limit > pageSizeCandidates[0] {
		limit = pageSizeCandidates[0]
	}

	var sizes []int
	seen := map[int]bool{}
	for _, size := range pageSizeCandidates {
		if size > limit {
			size = limit
		}
		if size <= 0 || seen[size] {
			continue
		}
		seen[size] = true
		sizes = append(sizes, size)
	}

	if len(sizes) == 0 {
		return []int{limit}
	}
	return sizes
}

func fallbackCursor(items []news.Item) string {
	if len(items) == 0 {
		return ""
	}
	last := items[len(items)-1]
	if last.CreatedAt.IsZero() {
		return ""
	}
	return strconv.FormatInt(last.CreatedAt.UnixMilli(), 10)
}
