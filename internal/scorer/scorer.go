// Package scorer fans scoring calls out in bounded batches and
// guarantees exactly one result per input item.
package scorer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jinshihui88/ai-news-collector/internal/logger"
	"github.com/jinshihui88/ai-news-collector/internal/metrics"
	"github.com/jinshihui88/ai-news-collector/internal/news"
	"github.com/jinshihui88/ai-news-collector/internal/retry"
)

const DefaultBatchSize = 10

// ScoreFunc scores a single item. Implementations are expected to be
// safe for concurrent use.
type ScoreFunc func(ctx context.Context, item news.Item) (news.ScoreResult, error)

// Result pairs one input item's ID with its scoring outcome. Err is
// set when every attempt for the item failed; Score is then 0.
type Result struct {
	ID     string
	Score  float64
	Reason string
	Usage  news.TokenUsage
	Err    error
}

type BatchScorer struct {
	score     ScoreFunc
	batchSize int
	retryCfg  retry.Config
	log       *slog.Logger
}

func NewBatchScorer(score ScoreFunc, batchSize int, retryCfg retry.Config) *BatchScorer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &BatchScorer{
		score:     score,
		batchSize: batchSize,
		retryCfg:  retryCfg,
		log:       logger.With("scorer"),
	}
}

// ScoreAll scores every item, batchSize at a time. Batches run
// sequentially; items within a batch run concurrently. A failed item
// never aborts the run and yields a zero-score Result with Err set.
// Results are returned in input order.
func (s *BatchScorer) ScoreAll(ctx context.Context, items []news.Item) []Result {
	results := make([]Result, len(items))

	totalBatches := (len(items) + s.batchSize - 1) / s.batchSize
	for start := 0; start < len(items); start += s.batchSize {
		end := start + s.batchSize
		if end > len(items) {
			end = len(items)
		}
		s.log.Debug("scoring batch", "batch", start/s.batchSize+1, "totalBatches", totalBatches, "size", end-start)

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = s.scoreOne(ctx, items[i])
			}(i)
		}
		wg.Wait()
	}

	return results
}

func (s *BatchScorer) scoreOne(ctx context.Context, item news.Item) Result {
	res, err := retry.DoValue(ctx, s.retryCfg, func() (news.ScoreResult, error) {
		return s.score(ctx, item)
	})
	if err != nil {
		s.log.Error("scoring failed for item", "item", item.ID, "title", item.Title, "error", err)
		metrics.Global.IncrementScoringFailures()
		return Result{ID: item.ID, Score: 0, Reason: "scoring failed", Err: err}
	}
	return Result{ID: item.ID, Score: res.Score, Reason: res.Reason, Usage: res.Usage}
}
