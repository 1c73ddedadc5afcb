// Package window computes the rolling recency window shared by all
// collectors and partitions timestamped items against it.
package window

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jinshihui88/ai-news-collector/internal/logger"
	"github.com/jinshihui88/ai-news-collector/internal/news"
)

const (
	// DefaultRecentDays is used when no configuration is available.
	DefaultRecentDays = 7
	// MaxRecentDays caps the configurable window.
	MaxRecentDays = 30
)

// Config holds the single recency setting.
type Config struct {
	RecentDays int
}

// Loader supplies the raw configuration; it is called at most once per
// Window until Reset.
type Loader func() (Config, error)

// Window caches the recency configuration after the first load. It is
// injected into collectors rather than living as a hidden singleton.
type Window struct {
	mu     sync.Mutex
	loader Loader
	cached *Config
	logged bool
	log    *slog.Logger
}

func New(loader Loader) *Window {
	return &Window{
		loader: loader,
		log:    logger.With("window"),
	}
}

// Fixed returns a Window pinned to the given day count, normalized the
// same way a loaded configuration would be.
func Fixed(recentDays int) *Window {
	return New(func() (Config, error) {
		return Config{RecentDays: recentDays}, nil
	})
}

func (w *Window) load() Config {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cached != nil {
		return *w.cached
	}

	cfg := Config{RecentDays: DefaultRecentDays}
	usedFallback := true

	if w.loader != nil {
		raw, err := w.loader()
		if err != nil {
			w.log.Warn("failed to load recency window config", "error", err)
		} else if raw.RecentDays >= 1 && raw.RecentDays <= MaxRecentDays {
			cfg = raw
			usedFallback = false
		}
	}

	w.cached = &cfg
	if !w.logged {
		if usedFallback {
			w.log.Info("recency window config missing or invalid, using default", "recentDays", cfg.RecentDays)
		} else {
			w.log.Info("recency window configured", "recentDays", cfg.RecentDays)
		}
		w.logged = true
	}

	return cfg
}

// RecentDays returns the cached configured value or the default.
func (w *Window) RecentDays() int {
	return w.load().RecentDays
}

// Cutoff returns the start of the recency window relative to now.
func (w *Window) Cutoff(now time.Time) time.Time {
	return now.Add(-time.Duration(w.RecentDays()) * 24 * time.Hour)
}

// Reset clears the cached configuration. Test-only operation.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cached = nil
	w.logged = false
}

// Partition is the result of classifying items against the window.
type Partition struct {
	Recent     []news.Item
	Outdated   []news.Item
	RecentDays int
	Cutoff     time.Time
}

// TimeFunc extracts the timestamp used for recency classification.
type TimeFunc func(news.Item) time.Time

// ByCreatedAt is the default TimeFunc.
func ByCreatedAt(item news.Item) time.Time {
	return item.CreatedAt
}

// Partition classifies every item as recent or outdated. Items with a
// missing timestamp always count as recent so valid content is never
// dropped silently.
func (w *Window) Partition(items []news.Item, timeFn TimeFunc) Partition {
	if timeFn == nil {
		timeFn = ByCreatedAt
	}

	cutoff := w.Cutoff(time.Now())
	result := Partition{
		Recent:     []news.Item{},
		Outdated:   []news.Item{},
		RecentDays: w.RecentDays(),
		Cutoff:     cutoff,
	}

	for _, item := range items {
		ts := timeFn(item)
		if ts.IsZero() || !ts.Before(cutoff) {
			result.Recent = append(result.Recent, item)
		} else {
			result.Outdated = append(result.Outdated, item)
		}
	}

	return result
}
