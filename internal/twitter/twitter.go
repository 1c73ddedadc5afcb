// Package twitter collects recent tweets through multi-plan searches
// over a recent-search JSON API.
package twitter

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/jinshihui88/ai-news-collector/internal/collect"
	"github.com/jinshihui88/ai-news-collector/internal/news"
)

const (
	// DefaultQuerySuffix excludes retweets from account searches.
	DefaultQuerySuffix = "-is:retweet"
	// DefaultAccountLimit is the per-account quota when none is configured.
	DefaultAccountLimit = 10
	// MaxSearchWindow is the longest lookback the recent-search API serves.
	MaxSearchWindow = 7 * 24 * time.Hour

	summaryMaxRunes = 400
	titleMaxRunes   = 120
)

// DefaultFallbackQueries seed the keyword plan when no accounts and no
// keywords are configured.
var DefaultFallbackQueries = []string{"AI", "Artificial Intelligence", "大模型", "AIGC"}

// Account is one configured author to follow.
type Account struct {
	Handle      string   `yaml:"handle"`
	DisplayName string   `yaml:"displayName"`
	Query       string   `yaml:"query"`
	Languages   []string `yaml:"languages"`
	Tags        []string `yaml:"tags"`
	Enabled     *bool    `yaml:"enabled"`
}

// IsEnabled treats accounts as enabled unless explicitly disabled.
func (a Account) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// PlanDefaults configures search-plan construction.
type PlanDefaults struct {
	Suffix          string
	Languages       []string
	FallbackQueries []string
	AccountLimit    int
	KeywordLimit    int
}

// BuildSearchPlans creates one plan per enabled account and language.
// When no account plans result, the fallback keywords are OR-combined
// into a single bounded-quota plan per language rather than one plan
// per keyword.
func BuildSearchPlans(accounts []Account, defaults PlanDefaults) []collect.Plan {
	accountLimit := DefaultAccountLimit
	if defaults.AccountLimit > 0 {
		accountLimit = collect.ClampLimit(defaults.AccountLimit)
	}
	keywordLimit := accountLimit
	if defaults.KeywordLimit > 0 {
		keywordLimit = collect.ClampLimit(defaults.KeywordLimit)
	}

	var plans []collect.Plan

	for _, account := range accounts {
		if !account.IsEnabled() {
			continue
		}
		handle := strings.TrimPrefix(strings.TrimSpace(account.Handle), "@")
		if handle == "" {
			continue
		}

		baseQuery := strings.TrimSpace(account.Query)
		if baseQuery == "" {
			baseQuery = "from:" + handle
			if suffix := strings.TrimSpace(defaults.Suffix); suffix != "" {
				baseQuery += " " + suffix
			}
		}

		label := account.DisplayName
		if label == "" {
			label = handle
		}

		for _, language := range planLanguages(account.Languages, defaults.Languages) {
			plans = append(plans, collect.Plan{
				Type:     collect.PlanAccount,
				Label:    label,
				Handle:   handle,
				Query:    AppendLanguage(baseQuery, language),
				Language: language,
				Tags:     account.Tags,
				Limit:    accountLimit,
			})
		}
	}

	if len(plans) > 0 {
		return plans
	}

	queries := defaults.FallbackQueries
	if len(queries) == 0 {
		queries = DefaultFallbackQueries
	}

	parts := make([]string, 0, len(queries))
	for _, keyword := range queries {
		if strings.Contains(keyword, " ") {
			keyword = fmt.Sprintf("%q", keyword)
		}
		parts = append(parts, keyword)
	}
	combined := strings.TrimSpace(fmt.Sprintf("(%s) %s", strings.Join(parts, " OR "), defaults.Suffix))

	for _, language := range planLanguages(nil, defaults.Languages) {
		plans = append(plans, collect.Plan{
			Type:     collect.PlanKeyword,
			Label:    "Fallback Keywords",
			Query:    AppendLanguage(combined, language),
			Language: language,
			Limit:    keywordLimit,
		})
	}

	return plans
}

func planLanguages(own, defaults []string) []string {
	languages := make([]string, 0, len(own))
	for _, lang := range own {
		if lang != "" {
			languages = append(languages, lang)
		}
	}
	if len(languages) == 0 {
		for _, lang := range defaults {
			if lang != "" {
				languages = append(languages, lang)
			}
		}
	}
	if len(languages) == 0 {
		return []string{""}
	}
	return languages
}

// AppendLanguage adds a lang: clause to a search query. Re-applying
// the same language is idempotent.
func AppendLanguage(query, language string) string {
	query = strings.TrimSpace(query)
	if language == "" {
		return query
	}
	if strings.Contains(query, "lang:"+language) {
		return query
	}
	return query + " lang:" + language
}

// SearchWindowStart converts the recency window into the earliest
// start time the search API accepts, capped at its 7 day maximum.
func SearchWindowStart(recentDays int, now time.Time) time.Time {
	window := time.Duration(recentDays) * 24 * time.Hour
	if window < time.Hour {
		window = time.Hour
	}
	if window > MaxSearchWindow {
		window = MaxSearchWindow
	}
	return now.Add(-window)
}

// SanitizeText strips emoji and collapses whitespace so summaries stay
// readable.
func SanitizeText(text string) string {
	var b strings.Builder
	for _, r := range text {
		if unicode.Is(unicode.So, r) || r == '️' || r == '‍' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// TweetURL builds the canonical status URL.
func TweetURL(username, tweetID string) string {
	if tweetID == "" {
		return ""
	}
	if username == "" {
		username = "unknown"
	}
	return fmt.Sprintf("https://twitter.com/%s/status/%s", username, tweetID)
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// buildItem normalizes one raw tweet into a news.Item. Tweets whose
// sanitized text is too short to make a meaningful summary are dropped.
func buildItem(t tweet, user *apiUser, plan collect.Plan) (news.Item, bool) {
	summary := strings.TrimSpace(truncateRunes(SanitizeText(t.Text), summaryMaxRunes))
	if len([]rune(summary)) < news.SummaryMinLength {
		return news.Item{}, false
	}

	title := summary
	if len([]rune(title)) > titleMaxRunes {
		title = truncateRunes(title, titleMaxRunes-3) + "..."
	}

	username := t.AuthorID
	authorName := plan.Label
	if user != nil {
		username = user.Username
		if user.Name != "" {
			authorName = user.Name
		}
	}

	createdAt, _ := time.Parse(time.RFC3339, t.CreatedAt)

	handle := plan.Handle
	if handle == "" {
		handle = username
	}

	return news.NewItem(news.Item{
		ID:        t.ID,
		Title:     title,
		Summary:   summary,
		URL:       TweetURL(username, t.ID),
		Source:    news.SourceTwitter,
		CreatedAt: createdAt,
		Metadata: map[string]any{
			"accountHandle": handle,
			"author":        authorName,
			"language":      t.Lang,
			"query":         plan.Query,
			"tags":          plan.Tags,
			"type":          string(plan.Type),
			"likes":         t.PublicMetrics.LikeCount,
			"comments":      t.PublicMetrics.ReplyCount,
			"retweets":      t.PublicMetrics.RetweetCount,
			"quotes":        t.PublicMetrics.QuoteCount,
		},
	}), true
}
