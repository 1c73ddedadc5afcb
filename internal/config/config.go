// Package config resolves runtime settings from the environment and
// the structured sources file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/jinshihui88/ai-news-collector/internal/llm"
	"github.com/jinshihui88/ai-news-collector/internal/twitter"
	"github.com/jinshihui88/ai-news-collector/internal/webnews"
)

const (
	exampleSummaryMinRunes = 10
	exampleSummaryMaxRunes = 500
)

type Config struct {
	// Credentials
	GeminiAPIKey       string
	TwitterBearerToken string

	// Scoring settings
	GeminiModel string
	BatchSize   int
	Threshold   ThresholdConfig
	Rubric      llm.Rubric

	// Collection settings
	RecentDays int
	MaxItems   int
	Twitter    TwitterConfig
	RSSFeeds   []string
	RSSMax     int
	WebNews    []webnews.Config

	// App settings
	Debug          bool
	RequestTimeout time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
	ReportDir      string
	SourcesPath    string
}

type ThresholdConfig struct {
	MinPercentage  float64 `yaml:"minPercentage"`
	MaxPercentage  float64 `yaml:"maxPercentage"`
	PreferredCount int     `yaml:"preferredCount"`
}

type TwitterConfig struct {
	Accounts          []twitter.Account `yaml:"accounts"`
	FallbackKeywords  []string          `yaml:"fallbackKeywords"`
	QuerySuffix       string            `yaml:"querySuffix"`
	DefaultLanguages  []string          `yaml:"defaultLanguages"`
	PerAccountLimit   int               `yaml:"perAccountLimit"`
	PerKeywordLimit   int               `yaml:"perKeywordLimit"`
	MaxResultsPerPage int               `yaml:"maxResultsPerPage"`
}

// sourcesFile is the YAML layout of the sources config.
type sourcesFile struct {
	Twitter TwitterConfig `yaml:"twitter"`
	RSS     struct {
		Feeds    []string `yaml:"feeds"`
		MaxItems int      `yaml:"maxItems"`
	} `yaml:"rss"`
	WebNews []webnews.Config `yaml:"webnews"`
	// Pointer fields so an explicit zero is distinguishable from an
	// absent key.
	Threshold struct {
		MinPercentage  *float64 `yaml:"minPercentage"`
		MaxPercentage  *float64 `yaml:"maxPercentage"`
		PreferredCount *int     `yaml:"preferredCount"`
	} `yaml:"threshold"`
	Rubric struct {
		Positive []llm.Example `yaml:"positive"`
		Negative []llm.Example `yaml:"negative"`
	} `yaml:"rubric"`
}

func Load() (*Config, error) {
	cfg := &Config{
		// Default values
		GeminiModel:    llm.DefaultModel,
		BatchSize:      10,
		RecentDays:     7,
		MaxItems:       100,
		RSSMax:         20,
		RequestTimeout: 30 * time.Second,
		RetryAttempts:  3,
		RetryDelay:     1 * time.Second,
		ReportDir:      "reports",
		SourcesPath:    "configs/sources.yaml",
		Threshold: ThresholdConfig{
			MinPercentage:  10,
			MaxPercentage:  30,
			PreferredCount: 15,
		},
	}

	// Load from environment
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.TwitterBearerToken = os.Getenv("TWITTER_BEARER_TOKEN")

	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		cfg.GeminiModel = model
	}
	if path := os.Getenv("SOURCES_CONFIG_PATH"); path != "" {
		cfg.SourcesPath = path
	}
	if dir := os.Getenv("REPORT_DIR"); dir != "" {
		cfg.ReportDir = dir
	}
	if debug := os.Getenv("DEBUG"); debug == "true" {
		cfg.Debug = true
	}

	cfg.BatchSize = getEnvIntOrDefault("SCORING_BATCH_SIZE", cfg.BatchSize)
	cfg.RecentDays = getEnvIntOrDefault("RECENT_DAYS", cfg.RecentDays)
	cfg.MaxItems = getEnvIntOrDefault("MAX_ITEMS", cfg.MaxItems)
	cfg.RetryAttempts = getEnvIntOrDefault("RETRY_ATTEMPTS", cfg.RetryAttempts)

	if v := os.Getenv("REQUEST_TIMEOUT_SECONDS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.RequestTimeout = time.Duration(val) * time.Second
		}
	}
	if v := os.Getenv("RETRY_DELAY_MS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.RetryDelay = time.Duration(val) * time.Millisecond
		}
	}

	if err := cfg.loadSources(cfg.SourcesPath); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

// loadSources merges the YAML sources file into cfg. File-level
// threshold values override the built-in defaults only when set.
func (c *Config) loadSources(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open sources config %s: %w", path, err)
	}
	defer f.Close()

	var src sourcesFile
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&src); err != nil {
		return fmt.Errorf("failed to parse sources config %s: %w", path, err)
	}

	c.Twitter = src.Twitter
	if c.Twitter.QuerySuffix == "" {
		c.Twitter.QuerySuffix = twitter.DefaultQuerySuffix
	}
	c.RSSFeeds = src.RSS.Feeds
	if src.RSS.MaxItems > 0 {
		c.RSSMax = src.RSS.MaxItems
	}
	c.WebNews = src.WebNews
	c.Rubric = llm.Rubric{
		Positive: src.Rubric.Positive,
		Negative: src.Rubric.Negative,
	}

	if src.Threshold.MinPercentage != nil {
		c.Threshold.MinPercentage = *src.Threshold.MinPercentage
	}
	if src.Threshold.MaxPercentage != nil {
		c.Threshold.MaxPercentage = *src.Threshold.MaxPercentage
	}
	if src.Threshold.PreferredCount != nil {
		c.Threshold.PreferredCount = *src.Threshold.PreferredCount
	}

	return nil
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if len(c.Twitter.Accounts) > 0 || len(c.Twitter.FallbackKeywords) > 0 {
		if c.TwitterBearerToken == "" {
			return fmt.Errorf("TWITTER_BEARER_TOKEN is required when twitter sources are configured")
		}
	}

	if len(c.Rubric.Positive) == 0 {
		return fmt.Errorf("rubric must contain at least one positive sample")
	}
	if len(c.Rubric.Negative) == 0 {
		return fmt.Errorf("rubric must contain at least one negative sample")
	}
	for _, group := range []struct {
		name     string
		examples []llm.Example
	}{
		{"positive", c.Rubric.Positive},
		{"negative", c.Rubric.Negative},
	} {
		for i, ex := range group.examples {
			if ex.Title == "" {
				return fmt.Errorf("rubric %s sample %d: title is required", group.name, i+1)
			}
			n := utf8.RuneCountInString(ex.Summary)
			if n < exampleSummaryMinRunes || n > exampleSummaryMaxRunes {
				return fmt.Errorf("rubric %s sample %d: summary must be %d-%d characters, got %d",
					group.name, i+1, exampleSummaryMinRunes, exampleSummaryMaxRunes, n)
			}
		}
	}

	t := c.Threshold
	if t.MinPercentage < 0 || t.MinPercentage > 100 {
		return fmt.Errorf("threshold minPercentage must be 0-100, got %v", t.MinPercentage)
	}
	if t.MaxPercentage < 0 || t.MaxPercentage > 100 {
		return fmt.Errorf("threshold maxPercentage must be 0-100, got %v", t.MaxPercentage)
	}
	if t.MinPercentage > t.MaxPercentage {
		return fmt.Errorf("threshold minPercentage (%v) must not exceed maxPercentage (%v)",
			t.MinPercentage, t.MaxPercentage)
	}
	if t.PreferredCount < 1 {
		return fmt.Errorf("threshold preferredCount must be at least 1, got %d", t.PreferredCount)
	}

	return nil
}
