package news

import "time"

// TokenUsage carries the usage report of one scoring call, passed
// through verbatim from the provider.
type TokenUsage struct {
	Input     int
	Output    int
	CacheHit  int
	CacheMiss int
	Total     int
}

// ScoreResult is the outcome of one successful scoring call.
type ScoreResult struct {
	Score  float64
	Reason string
	Usage  TokenUsage
}

// ScoredItem wraps an Item with its scoring annotation. Passed is set
// only after threshold selection.
type ScoredItem struct {
	Item
	Score  float64
	Reason string
	Usage  TokenUsage
	Err    error
	Passed bool
}

// RunStats aggregates one pipeline run. Derived once, never mutated.
// FilterRate and CacheHitRate are percentages (0-100).
type RunStats struct {
	TotalNews      int
	ValidNews      int
	FilteredCount  int
	FilterRate     float64
	AverageScore   float64
	HighestScore   float64
	LowestScore    float64
	Duration       time.Duration
	TotalTokens    int
	CacheHitTokens int
	CacheHitRate   float64
	EstimatedCost  float64
}
