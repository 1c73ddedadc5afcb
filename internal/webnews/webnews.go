// Package webnews extracts listing pages into pipeline items using
// configured CSS selectors. No headless fallback: pages that need
// scripting are out of scope.
package webnews

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jinshihui88/ai-news-collector/internal/collect"
	"github.com/jinshihui88/ai-news-collector/internal/logger"
	"github.com/jinshihui88/ai-news-collector/internal/news"
	"github.com/jinshihui88/ai-news-collector/internal/retry"
)

// Selectors name the DOM locations of each listing field.
type Selectors struct {
	Item    string `yaml:"item"`
	Title   string `yaml:"title"`
	Summary string `yaml:"summary"`
	Link    string `yaml:"link"`
	Time    string `yaml:"time"`
}

// Config describes one listing page.
type Config struct {
	URL       string            `yaml:"url"`
	MaxItems  int               `yaml:"maxItems"`
	Timeout   time.Duration     `yaml:"-"`
	Selectors Selectors         `yaml:"selectors"`
	Headers   map[string]string `yaml:"headers"`
}

// Source scrapes one configured listing page.
type Source struct {
	cfg        Config
	httpClient *http.Client
	retryCfg   retry.Config
	log        *slog.Logger
}

func NewSource(cfg Config) *Source {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Source{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		retryCfg:   retry.DefaultConfig(),
		log:        logger.With("webnews"),
	}
}

// Collect fetches the listing page and normalizes its entries.
func (s *Source) Collect(ctx context.Context) ([]news.Item, error) {
	doc, err := retry.DoValue(ctx, s.retryCfg, func() (*goquery.Document, error) {
		return s.fetchDocument(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("load listing page: %w", err)
	}

	var items []news.Item
	doc.Find(s.cfg.Selectors.Item).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if s.cfg.MaxItems > 0 && len(items) >= s.cfg.MaxItems {
			return false
		}
		if item, ok := s.normalize(sel); ok {
			items = append(items, item)
		}
		return true
	})

	s.log.Info("listing page collected", "url", s.cfg.URL, "items", len(items))
	return items, nil
}

func (s *Source) fetchDocument(ctx context.Context) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	for key, value := range s.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &collect.HTTPError{Status: resp.StatusCode}
	}

	return goquery.NewDocumentFromReader(resp.Body)
}

func (s *Source) normalize(sel *goquery.Selection) (news.Item, bool) {
	title := strings.TrimSpace(sel.Find(s.cfg.Selectors.Title).First().Text())
	summary := strings.TrimSpace(sel.Find(s.cfg.Selectors.Summary).First().Text())
	if summary == "" {
		summary = title
	}
	if len([]rune(summary)) > news.SummaryMaxLength {
		summary = string([]rune(summary)[:news.SummaryMaxLength])
	}
	if title == "" || len([]rune(summary)) < news.SummaryMinLength {
		return news.Item{}, false
	}

	link, _ := sel.Find(s.cfg.Selectors.Link).First().Attr("href")
	link = s.absoluteURL(link)
	if link == "" {
		return news.Item{}, false
	}

	var createdAt time.Time
	if s.cfg.Selectors.Time != "" {
		raw := strings.TrimSpace(sel.Find(s.cfg.Selectors.Time).First().Text())
		createdAt = parseListingTime(raw)
	}

	return news.NewItem(news.Item{
		ID:        itemKey(link),
		Title:     title,
		Summary:   summary,
		URL:       link,
		Source:    news.SourceWebNews,
		CreatedAt: createdAt,
		Metadata:  map[string]any{"listing": s.cfg.URL},
	}), true
}

func (s *Source) absoluteURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	base, err := url.Parse(s.cfg.URL)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

var listingTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
}

func parseListingTime(raw string) time.Time {
	for _, layout := range listingTimeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// itemKey derives a stable identifier from the entry URL.
func itemKey(link string) string {
	h := sha1.Sum([]byte(link))
	return hex.EncodeToString(h[:])
}
