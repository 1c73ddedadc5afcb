// Package rss normalizes syndication feeds into pipeline items.
package rss

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/jinshihui88/ai-news-collector/internal/logger"
	"github.com/jinshihui88/ai-news-collector/internal/news"
)

// Source fetches a configured list of feeds.
type Source struct {
	feeds    []string
	maxItems int
	parser   *gofeed.Parser
	log      *slog.Logger
}

func NewSource(feeds []string, maxItems int) *Source {
	return &Source{
		feeds:    feeds,
		maxItems: maxItems,
		parser:   gofeed.NewParser(),
		log:      logger.With("rss"),
	}
}

// Collect downloads and normalizes all feeds. A failing feed is logged
// and skipped; it never aborts the run.
func (s *Source) Collect(ctx context.Context) []news.Item {
	var items []news.Item
	ok := 0

	for _, feedURL := range s.feeds {
		feed, err := s.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			s.log.Error("failed to parse feed", "url", feedURL, "error", err)
			continue
		}
		ok++

		for _, entry := range feed.Items {
			if s.maxItems > 0 && len(items) >= s.maxItems {
				break
			}
			if item, valid := normalizeEntry(entry, feed.Title); valid {
				items = append(items, item)
			}
		}
		s.log.Debug("feed loaded", "url", feedURL, "entries", len(feed.Items))
	}

	s.log.Info("rss collection finished", "feeds_ok", ok, "feeds_total", len(s.feeds), "items", len(items))
	return items
}

func normalizeEntry(entry *gofeed.Item, feedTitle string) (news.Item, bool) {
	summary := strings.TrimSpace(entry.Description)
	if summary == "" {
		summary = strings.TrimSpace(entry.Content)
	}
	if len([]rune(summary)) > news.SummaryMaxLength {
		summary = string([]rune(summary)[:news.SummaryMaxLength])
	}
	if len([]rune(summary)) < news.SummaryMinLength {
		return news.Item{}, false
	}

	id := entry.GUID
	if id == "" {
		id = entry.Link
	}

	var createdAt time.Time
	if entry.PublishedParsed != nil {
		createdAt = *entry.PublishedParsed
	} else if entry.UpdatedParsed != nil {
		createdAt = *entry.UpdatedParsed
	}

	author := ""
	if entry.Author != nil {
		author = entry.Author.Name
	}

	return news.NewItem(news.Item{
		ID:        id,
		Title:     strings.TrimSpace(entry.Title),
		Summary:   summary,
		URL:       entry.Link,
		Source:    news.SourceRSS,
		CreatedAt: createdAt,
		Metadata: map[string]any{
			"feed":   feedTitle,
			"author": author,
			"tags":   entry.Categories,
		},
	}), true
}
