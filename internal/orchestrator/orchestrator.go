// Package orchestrator drives the scoring stage and selects the final
// batch with a percentile threshold over valid scores.
package orchestrator

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/jinshihui88/ai-news-collector/internal/logger"
	"github.com/jinshihui88/ai-news-collector/internal/metrics"
	"github.com/jinshihui88/ai-news-collector/internal/news"
	"github.com/jinshihui88/ai-news-collector/internal/scorer"
)

// Pricing in USD per million tokens.
const (
	PriceInputPerMillion    = 0.27
	PriceOutputPerMillion   = 1.10
	PriceCacheHitPerMillion = 0.027
)

// Threshold bounds how many items the percentile selection keeps.
type Threshold struct {
	MinPercentage  float64
	MaxPercentage  float64
	PreferredCount int
}

// Result carries every scored item plus the selected subset.
type Result struct {
	Scored   []news.ScoredItem
	Filtered []news.ScoredItem
	Stats    news.RunStats
}

type Orchestrator struct {
	scorer    *scorer.BatchScorer
	threshold Threshold
	log       *slog.Logger
}

func New(s *scorer.BatchScorer, threshold Threshold) *Orchestrator {
	return &Orchestrator{
		scorer:    s,
		threshold: threshold,
		log:       logger.With("orchestrator"),
	}
}

// Run scores every item and applies the threshold. Excluded items were
// rejected upstream and never reach the model, but they stay in the
// scored set with a zero score so run totals still cover everything
// collected. No input yields an empty result with zeroed stats rather
// than an error.
func (o *Orchestrator) Run(ctx context.Context, items []news.Item, excluded []news.Item) (*Result, error) {
	start := time.Now()

	if len(items) == 0 && len(excluded) == 0 {
		o.log.Warn("no items to score")
		return &Result{Scored: []news.ScoredItem{}, Filtered: []news.ScoredItem{}}, nil
	}

	o.log.Info("scoring started", "items", len(items), "excluded", len(excluded))
	results := o.scorer.ScoreAll(ctx, items)
	scored := merge(items, results)
	for _, item := range excluded {
		scored = append(scored, news.ScoredItem{Item: item, Score: 0, Reason: "unscored"})
	}

	filtered := o.applyThreshold(scored)
	stats := o.buildStats(scored, filtered, time.Since(start))

	metrics.Global.AddTokens(int64(stats.TotalTokens))
	o.log.Info("scoring finished",
		"total", stats.TotalNews,
		"valid", stats.ValidNews,
		"selected", stats.FilteredCount,
		"avgScore", stats.AverageScore,
		"duration", stats.Duration)

	return &Result{Scored: scored, Filtered: filtered, Stats: stats}, nil
}

// merge joins scorer results back onto their items by ID. Items the
// scorer never reported get a zero score so one item always yields
// exactly one scored entry.
func merge(items []news.Item, results []scorer.Result) []news.ScoredItem {
	byID := make(map[string]scorer.Result, len(results))
	for _, r := range results {
		byID[r.ID] = r
	}

	scored := make([]news.ScoredItem, 0, len(items))
	for _, item := range items {
		r, ok := byID[item.ID]
		if !ok {
			scored = append(scored, news.ScoredItem{Item: item, Score: 0, Reason: "unscored"})
			continue
		}
		scored = append(scored, news.ScoredItem{
			Item:   item,
			Score:  r.Score,
			Reason: r.Reason,
			Usage:  r.Usage,
			Err:    r.Err,
		})
	}
	return scored
}

// applyThreshold keeps the top target = clamp(preferred, minCount,
// maxCount) items among those that scored successfully above zero,
// where the bounds derive from the configured percentages of the valid
// population. Ties keep input order.
func (o *Orchestrator) applyThreshold(scored []news.ScoredItem) []news.ScoredItem {
	valid := make([]*news.ScoredItem, 0, len(scored))
	for i := range scored {
		if scored[i].Err == nil && scored[i].Score > 0 {
			valid = append(valid, &scored[i])
		}
	}
	if len(valid) == 0 {
		return []news.ScoredItem{}
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Score > valid[j].Score
	})

	n := float64(len(valid))
	minCount := int(math.Max(1, math.Ceil(n*o.threshold.MinPercentage/100)))
	maxCount := int(math.Max(float64(minCount), math.Ceil(n*o.threshold.MaxPercentage/100)))

	target := o.threshold.PreferredCount
	if target < minCount {
		target = minCount
	}
	if target > maxCount {
		target = maxCount
	}
	if target > len(valid) {
		target = len(valid)
	}

	o.log.Debug("threshold applied",
		"valid", len(valid), "min", minCount, "max", maxCount, "target", target)

	filtered := make([]news.ScoredItem, 0, target)
	for _, it := range valid[:target] {
		it.Passed = true
		filtered = append(filtered, *it)
	}
	return filtered
}

func (o *Orchestrator) buildStats(scored, filtered []news.ScoredItem, elapsed time.Duration) news.RunStats {
	stats := news.RunStats{
		TotalNews:     len(scored),
		FilteredCount: len(filtered),
		Duration:      elapsed,
	}

	var sum, highest float64
	lowest := math.Inf(1)
	for _, s := range scored {
		stats.TotalTokens += s.Usage.Total
		stats.CacheHitTokens += s.Usage.CacheHit
		stats.EstimatedCost += estimateCost(s.Usage)

		if s.Err != nil || s.Score <= 0 {
			continue
		}
		stats.ValidNews++
		sum += s.Score
		if s.Score > highest {
			highest = s.Score
		}
		if s.Score < lowest {
			lowest = s.Score
		}
	}

	if stats.ValidNews > 0 {
		stats.AverageScore = sum / float64(stats.ValidNews)
		stats.HighestScore = highest
		stats.LowestScore = lowest
	}
	if stats.TotalNews > 0 {
		stats.FilterRate = float64(stats.FilteredCount) / float64(stats.TotalNews) * 100
	}
	if stats.TotalTokens > 0 {
		stats.CacheHitRate = float64(stats.CacheHitTokens) / float64(stats.TotalTokens) * 100
	}
	return stats
}

func estimateCost(u news.TokenUsage) float64 {
	return (float64(u.CacheMiss)*PriceInputPerMillion +
		float64(u.CacheHit)*PriceCacheHitPerMillion +
		float64(u.Output)*PriceOutputPerMillion) / 1e6
}
