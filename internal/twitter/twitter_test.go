package twitter

import (
	"strings"
	"testing"
	"time"

	"github.com/jinshihui88/ai-news-collector/internal/collect"
)

func TestAppendLanguage(t *testing.T) {
	got := AppendLanguage("from:OpenAI -is:retweet", "en")
	want := "from:OpenAI -is:retweet lang:en"
	if got != want {
		t.Errorf("AppendLanguage = %q, want %q", got, want)
	}

	if again := AppendLanguage(got, "en"); again != want {
		t.Errorf("re-applying the same language must be idempotent, got %q", again)
	}

	if noLang := AppendLanguage("from:OpenAI", ""); noLang != "from:OpenAI" {
		t.Errorf("empty language must leave the query untouched, got %q", noLang)
	}
}

func TestBuildSearchPlans_AccountTimesLanguage(t *testing.T) {
	disabled := false
	accounts := []Account{
		{Handle: "@OpenAI", DisplayName: "OpenAI", Languages: []string{"en", "zh"}},
		{Handle: "karpathy"},
		{Handle: "ignored", Enabled: &disabled},
		{Handle: "  "},
	}
	defaults := PlanDefaults{
		Suffix:       "-is:retweet",
		Languages:    []string{"en"},
		AccountLimit: 10,
	}

	plans := BuildSearchPlans(accounts, defaults)

	if len(plans) != 3 {
		t.Fatalf("expected 3 plans (2 languages + 1 default), got %d: %+v", len(plans), plans)
	}

	if plans[0].Query != "from:OpenAI -is:retweet lang:en" {
		t.Errorf("unexpected first query: %q", plans[0].Query)
	}
	if plans[1].Query != "from:OpenAI -is:retweet lang:zh" {
		t.Errorf("unexpected second query: %q", plans[1].Query)
	}
	if plans[2].Handle != "karpathy" || plans[2].Language != "en" {
		t.Errorf("default language plan wrong: %+v", plans[2])
	}

	for _, p := range plans {
		if p.Type != collect.PlanAccount {
			t.Errorf("expected account plan, got %s", p.Type)
		}
		if p.Limit != 10 {
			t.Errorf("expected limit 10, got %d", p.Limit)
		}
	}
}

func TestBuildSearchPlans_CustomQueryWins(t *testing.T) {
	accounts := []Account{{Handle: "sama", Query: "from:sama (AGI OR safety)"}}

	plans := BuildSearchPlans(accounts, PlanDefaults{Suffix: "-is:retweet"})
	if len(plans) != 1 {
		t.Fatalf("expected 1 plan, got %d", len(plans))
	}
	if plans[0].Query != "from:sama (AGI OR safety)" {
		t.Errorf("custom query must not get the suffix, got %q", plans[0].Query)
	}
}

func TestBuildSearchPlans_FallbackCombinesKeywords(t *testing.T) {
	defaults := PlanDefaults{
		Suffix:          "-is:retweet",
		Languages:       []string{"en", "zh"},
		FallbackQueries: []string{"AI", "Artificial Intelligence", "大模型"},
		KeywordLimit:    30,
	}

	plans := BuildSearchPlans(nil, defaults)

	if len(plans) != 2 {
		t.Fatalf("expected one fallback plan per language, got %d", len(plans))
	}
	for _, p := range plans {
		if p.Type != collect.PlanKeyword {
			t.Errorf("expected keyword plan, got %s", p.Type)
		}
		if !strings.Contains(p.Query, `(AI OR "Artificial Intelligence" OR 大模型)`) {
			t.Errorf("keywords must be OR-combined with phrases quoted, got %q", p.Query)
		}
		if p.Limit != 30 {
			t.Errorf("expected keyword limit 30, got %d", p.Limit)
		}
	}
	if plans[0].Language != "en" || plans[1].Language != "zh" {
		t.Errorf("unexpected languages: %q %q", plans[0].Language, plans[1].Language)
	}
}

func TestBuildSearchPlans_NoFallbackWhenAccountsExist(t *testing.T) {
	accounts := []Account{{Handle: "OpenAI"}}
	defaults := PlanDefaults{FallbackQueries: []string{"AI"}}

	plans := BuildSearchPlans(accounts, defaults)
	for _, p := range plans {
		if p.Type == collect.PlanKeyword {
			t.Errorf("fallback plan must not be built when account plans exist: %+v", p)
		}
	}
}

func TestSearchWindowStart_Caps(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	if got := SearchWindowStart(3, now); !got.Equal(now.Add(-3 * 24 * time.Hour)) {
		t.Errorf("3-day window start wrong: %v", got)
	}
	if got := SearchWindowStart(30, now); !got.Equal(now.Add(-MaxSearchWindow)) {
		t.Errorf("window must cap at the API maximum, got %v", got)
	}
	if got := SearchWindowStart(0, now); !got.Equal(now.Add(-time.Hour)) {
		t.Errorf("degenerate window must floor at one hour, got %v", got)
	}
}

func TestSanitizeText(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Big   news:\n\nGPT-5  is out", "Big news: GPT-5 is out"},
		{"🚀 Launch day 🎉", "Launch day"},
		{"plain text", "plain text"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := SanitizeText(tc.in); got != tc.want {
			t.Errorf("SanitizeText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBuildItem_DropsShortText(t *testing.T) {
	plan := collect.Plan{Label: "OpenAI", Handle: "OpenAI", Type: collect.PlanAccount}

	_, ok := buildItem(tweet{ID: "1", Text: "short"}, nil, plan)
	if ok {
		t.Error("tweet with a too-short summary must be dropped")
	}

	item, ok := buildItem(tweet{
		ID:        "2",
		Text:      "A longer update about a new model release worth reading.",
		CreatedAt: "2025-06-15T10:00:00Z",
	}, &apiUser{Username: "OpenAI", Name: "OpenAI"}, plan)
	if !ok {
		t.Fatal("expected item to be built")
	}
	if item.URL != "https://twitter.com/OpenAI/status/2" {
		t.Errorf("unexpected url %q", item.URL)
	}
	if item.CreatedAt.IsZero() {
		t.Error("expected parsed creation time")
	}
}
