// Package app wires the full pipeline: collect from every configured
// source, filter by recency and validity, score, select, and report.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jinshihui88/ai-news-collector/internal/collect"
	"github.com/jinshihui88/ai-news-collector/internal/config"
	"github.com/jinshihui88/ai-news-collector/internal/llm"
	"github.com/jinshihui88/ai-news-collector/internal/logger"
	"github.com/jinshihui88/ai-news-collector/internal/metrics"
	"github.com/jinshihui88/ai-news-collector/internal/news"
	"github.com/jinshihui88/ai-news-collector/internal/orchestrator"
	"github.com/jinshihui88/ai-news-collector/internal/report"
	"github.com/jinshihui88/ai-news-collector/internal/retry"
	"github.com/jinshihui88/ai-news-collector/internal/rss"
	"github.com/jinshihui88/ai-news-collector/internal/scorer"
	"github.com/jinshihui88/ai-news-collector/internal/twitter"
	"github.com/jinshihui88/ai-news-collector/internal/webnews"
	"github.com/jinshihui88/ai-news-collector/internal/window"
)

type App struct {
	cfg *config.Config
	win *window.Window
}

func New(cfg *config.Config) *App {
	return &App{
		cfg: cfg,
		win: window.Fixed(cfg.RecentDays),
	}
}

// Run executes one full pipeline pass and writes the digest. The
// returned error covers setup and scoring failures; individual source
// failures are logged and skipped.
func (a *App) Run(ctx context.Context) error {
	start := time.Now()
	log := logger.With("app")

	items := a.collectAll(ctx)
	log.Info("collection finished", "items", len(items))

	part := a.win.Partition(items, window.ByCreatedAt)
	if n := len(part.Outdated); n > 0 {
		metrics.Global.AddOutdatedFiltered(int64(n))
		log.Info("outdated items dropped", "count", n, "recentDays", part.RecentDays)
	}

	valid, invalid := news.ValidateItems(part.Recent)
	excluded := make([]news.Item, 0, len(invalid))
	if len(invalid) > 0 {
		metrics.Global.AddInvalidFiltered(int64(len(invalid)))
		for _, inv := range invalid {
			log.Warn("invalid item excluded from scoring", "item", inv.Item.ID, "errors", inv.Errors)
			excluded = append(excluded, inv.Item)
		}
	}

	client, err := llm.NewClient(ctx, llm.ClientConfig{
		APIKey: a.cfg.GeminiAPIKey,
		Model:  a.cfg.GeminiModel,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	rubric := a.cfg.Rubric
	batch := scorer.NewBatchScorer(
		func(ctx context.Context, item news.Item) (news.ScoreResult, error) {
			return client.Score(ctx, item, rubric)
		},
		a.cfg.BatchSize,
		a.retryConfig(llm.ShouldRetry),
	)

	orch := orchestrator.New(batch, orchestrator.Threshold{
		MinPercentage:  a.cfg.Threshold.MinPercentage,
		MaxPercentage:  a.cfg.Threshold.MaxPercentage,
		PreferredCount: a.cfg.Threshold.PreferredCount,
	})

	result, err := orch.Run(ctx, valid, excluded)
	if err != nil {
		return fmt.Errorf("scoring run failed: %w", err)
	}

	path, err := report.Write(a.cfg.ReportDir, result.Filtered, result.Stats)
	if err != nil {
		return err
	}

	metrics.Global.RecordRunDuration(time.Since(start))
	metrics.Global.SetLastRun()
	log.Info("run finished",
		"report", path,
		"collected", len(items),
		"selected", len(result.Filtered),
		"cost", fmt.Sprintf("$%.4f", result.Stats.EstimatedCost),
		"duration", time.Since(start).Round(time.Millisecond))

	return nil
}

// collectAll gathers items from every configured source and
// deduplicates across sources by item ID.
func (a *App) collectAll(ctx context.Context) []news.Item {
	log := logger.With("app")
	var items []news.Item

	if plans := a.twitterPlans(); len(plans) > 0 {
		client := twitter.NewClient(twitter.ClientConfig{
			BearerToken: a.cfg.TwitterBearerToken,
			Timeout:     a.cfg.RequestTimeout,
			StartTime:   twitter.SearchWindowStart(a.win.RecentDays(), time.Now()),
			Retry:       a.retryConfig(nil),
		})
		collector := collect.NewCollector(client)
		budget := collect.GlobalBudget(a.cfg.MaxItems, plans)
		items = append(items, collector.Run(ctx, plans, budget)...)
	}

	if len(a.cfg.RSSFeeds) > 0 {
		src := rss.NewSource(a.cfg.RSSFeeds, a.cfg.RSSMax)
		items = append(items, src.Collect(ctx)...)
	}

	for _, wc := range a.cfg.WebNews {
		if wc.Timeout <= 0 {
			wc.Timeout = a.cfg.RequestTimeout
		}
		src := webnews.NewSource(wc)
		got, err := src.Collect(ctx)
		if err != nil {
			log.Error("web source failed", "url", wc.URL, "error", err)
			continue
		}
		items = append(items, got...)
	}

	return dedupeByID(items)
}

func (a *App) twitterPlans() []collect.Plan {
	tw := a.cfg.Twitter
	if len(tw.Accounts) == 0 && len(tw.FallbackKeywords) == 0 {
		return nil
	}
	return twitter.BuildSearchPlans(tw.Accounts, twitter.PlanDefaults{
		Suffix:          tw.QuerySuffix,
		Languages:       tw.DefaultLanguages,
		FallbackQueries: tw.FallbackKeywords,
		AccountLimit:    tw.PerAccountLimit,
		KeywordLimit:    tw.PerKeywordLimit,
	})
}

func (a *App) retryConfig(shouldRetry func(error) bool) retry.Config {
	cfg := retry.Config{
		MaxRetries:   a.cfg.RetryAttempts,
		InitialDelay: a.cfg.RetryDelay,
		MaxDelay:     retry.DefaultMaxDelay,
		ShouldRetry:  shouldRetry,
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = retry.DefaultMaxRetries
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = retry.DefaultInitialDelay
	}
	return cfg
}

func dedupeByID(items []news.Item) []news.Item {
	seen := make(map[string]struct{}, len(items))
	out := make([]news.Item, 0, len(items))
	for _, item := range items {
		if _, dup := seen[item.ID]; dup {
			metrics.Global.IncrementDuplicatesDropped()
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	return out
}
