// Package llm scores single items against a user rubric with one
// generative-model call per item.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/jinshihui88/ai-news-collector/internal/logger"
	"github.com/jinshihui88/ai-news-collector/internal/news"
	"github.com/jinshihui88/ai-news-collector/internal/retry"
)

const (
	DefaultModel       = "gemini-1.5-flash"
	DefaultMaxTokens   = 500
	DefaultTemperature = 0.7
)

// Example is one worked rubric sample, positive or negative.
type Example struct {
	Title   string `yaml:"title"`
	Summary string `yaml:"summary"`
	Reason  string `yaml:"reason"`
}

// Rubric carries the user preference samples the model scores against.
// Its wording is opaque to the rest of the pipeline.
type Rubric struct {
	Positive []Example
	Negative []Example
}

type Client struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
	log         *slog.Logger
}

type ClientConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create scoring client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = DefaultTemperature
	}

	return &Client{
		client:      client,
		model:       model,
		maxTokens:   int32(maxTokens),
		temperature: float32(temperature),
		log:         logger.With("llm"),
	}, nil
}

func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Score issues exactly one scoring call for one item and returns the
// bounded score, free-text reason, and the call's usage report.
func (c *Client) Score(ctx context.Context, item news.Item, rubric Rubric) (news.ScoreResult, error) {
	model := c.client.GenerativeModel(c.model)
	model.SetMaxOutputTokens(c.maxTokens)
	model.SetTemperature(c.temperature)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(buildSystemPrompt(rubric))},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(buildUserPrompt(item)))
	if err != nil {
		return news.ScoreResult{}, fmt.Errorf("scoring call failed: %w", err)
	}

	text, err := candidateText(resp)
	if err != nil {
		return news.ScoreResult{}, err
	}

	score, reason, err := parseScorePayload(text)
	if err != nil {
		return news.ScoreResult{}, err
	}

	if score < 0 || score > 10 {
		c.log.Warn("score out of range, clamping", "item", item.ID, "score", score)
		if score < 0 {
			score = 0
		} else {
			score = 10
		}
	}

	usage := tokenUsage(resp.UsageMetadata)
	c.log.Debug("scored item", "item", item.ID, "score", score,
		"inputTokens", usage.Input, "outputTokens", usage.Output, "cacheHitTokens", usage.CacheHit)

	return news.ScoreResult{Score: score, Reason: reason, Usage: usage}, nil
}

// ShouldRetry classifies scoring-call failures: transport errors,
// 5xx, and rate limits are retryable; malformed output is fatal.
func ShouldRetry(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500 || apiErr.Code == 429
	}
	return retry.DefaultShouldRetry(err)
}

func buildSystemPrompt(rubric Rubric) string {
	var b strings.Builder
	b.WriteString("You are a professional AI news assessor. Score each news item against the user preference samples below.\n\n")
	b.WriteString("# Scoring scale\n\n")
	b.WriteString("- 10: perfectly matches the user preferences, exceptional quality\n")
	b.WriteString("- 8-9: strong match, worth pushing\n")
	b.WriteString("- 6-7: reasonable match, worth considering\n")
	b.WriteString("- 4-5: partial match, average quality\n")
	b.WriteString("- 1-3: weak match\n")
	b.WriteString("- 0: no match or very poor quality\n\n")

	b.WriteString("## Positive samples (should be pushed)\n\n")
	writeExamples(&b, rubric.Positive, "matches the user preferences")
	b.WriteString("## Negative samples (should not be pushed)\n\n")
	writeExamples(&b, rubric.Negative, "does not match the user preferences")

	b.WriteString("# Output format\n\n")
	b.WriteString("Respond with a JSON object:\n\n")
	b.WriteString("{\"score\": 8.5, \"reason\": \"concise justification (50-200 characters)\"}\n\n")
	b.WriteString("The reason must explain how the item relates to the samples and name its strengths or weaknesses.")
	return b.String()
}

func writeExamples(b *strings.Builder, examples []Example, defaultReason string) {
	for i, ex := range examples {
		reason := ex.Reason
		if reason == "" {
			reason = defaultReason
		}
		fmt.Fprintf(b, "### Sample %d\nTitle: %s\nSummary: %s\nReason: %s\n\n", i+1, ex.Title, ex.Summary, reason)
	}
}

func buildUserPrompt(item news.Item) string {
	return fmt.Sprintf("Assess this news item against the samples and respond in JSON.\n\nTitle: %s\n\nSummary: %s", item.Title, item.Summary)
}

func candidateText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from scoring model")
	}
	if text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text); ok {
		return string(text), nil
	}
	return "", fmt.Errorf("unexpected response part type from scoring model")
}

type scorePayload struct {
	Score  *float64 `json:"score"`
	Reason string   `json:"reason"`
}

// parseScorePayload decodes the model's JSON answer, tolerating a
// surrounding markdown code fence.
func parseScorePayload(text string) (float64, string, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var payload scorePayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return 0, "", fmt.Errorf("scoring response is not valid JSON: %w", err)
	}
	if payload.Score == nil || payload.Reason == "" {
		return 0, "", fmt.Errorf("scoring response missing required fields (score or reason)")
	}

	return *payload.Score, payload.Reason, nil
}

func tokenUsage(meta *genai.UsageMetadata) news.TokenUsage {
	if meta == nil {
		return news.TokenUsage{}
	}
	usage := news.TokenUsage{
		Input:    int(meta.PromptTokenCount),
		Output:   int(meta.CandidatesTokenCount),
		CacheHit: int(meta.CachedContentTokenCount),
		Total:    int(meta.TotalTokenCount),
	}
	if usage.Input > usage.CacheHit {
		usage.CacheMiss = usage.Input - usage.CacheHit
	}
	return usage
}
