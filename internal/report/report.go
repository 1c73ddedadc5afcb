// Package report renders a scored run as a markdown digest.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jinshihui88/ai-news-collector/internal/logger"
	"github.com/jinshihui88/ai-news-collector/internal/news"
)

// Render builds the markdown digest for one run: selected items in
// score order with per-item reasons, then a run statistics section.
func Render(items []news.ScoredItem, stats news.RunStats, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# AI News Digest — %s\n\n", now.Format("2006-01-02"))
	fmt.Fprintf(&b, "Selected %d of %d collected items.\n\n", len(items), stats.TotalNews)

	if len(items) == 0 {
		b.WriteString("No items passed selection in this run.\n\n")
	}

	for i, item := range items {
		fmt.Fprintf(&b, "## %d. %s %s\n\n", i+1, scoreEmoji(item.Score), item.Title)
		fmt.Fprintf(&b, "**Score:** %.1f/10 · **Source:** %s\n\n", item.Score, item.Source)
		fmt.Fprintf(&b, "%s\n\n", item.Summary)
		if item.Reason != "" {
			fmt.Fprintf(&b, "> %s\n\n", item.Reason)
		}
		if item.URL != "" {
			fmt.Fprintf(&b, "[Read more](%s)\n\n", item.URL)
		}
	}

	b.WriteString("---\n\n## Run statistics\n\n")
	fmt.Fprintf(&b, "- Collected: %d (valid: %d)\n", stats.TotalNews, stats.ValidNews)
	fmt.Fprintf(&b, "- Selected: %d (%.1f%%)\n", stats.FilteredCount, stats.FilterRate)
	if stats.ValidNews > 0 {
		fmt.Fprintf(&b, "- Scores: avg %.2f, high %.1f, low %.1f\n",
			stats.AverageScore, stats.HighestScore, stats.LowestScore)
	}
	fmt.Fprintf(&b, "- Tokens: %d (cache hit rate %.1f%%)\n", stats.TotalTokens, stats.CacheHitRate)
	fmt.Fprintf(&b, "- Estimated cost: $%.4f\n", stats.EstimatedCost)
	fmt.Fprintf(&b, "- Duration: %s\n", stats.Duration.Round(time.Millisecond))

	return b.String()
}

// Write renders the digest and stores it under dir as
// digest-YYYY-MM-DD.md, creating the directory when missing.
func Write(dir string, items []news.ScoredItem, stats news.RunStats) (string, error) {
	now := time.Now()
	content := Render(items, stats, now)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("digest-%s.md", now.Format("2006-01-02")))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	logger.Info("report written", "path", path, "items", len(items))
	return path, nil
}

func scoreEmoji(score float64) string {
	switch {
	case score >= 9:
		return "🔥"
	case score >= 8:
		return "⭐"
	case score >= 7:
		return "👍"
	case score >= 6:
		return "👌"
	default:
		return "📋"
	}
}
