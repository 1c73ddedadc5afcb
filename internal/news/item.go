// Package news defines the normalized content model shared by all
// collectors and the scoring pipeline.
package news

import (
	"fmt"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Source identifies where an item was collected from.
type Source string

const (
	SourceTwitter Source = "Twitter"
	SourceRSS     Source = "RSS"
	SourceWebNews Source = "WebNews"
)

// AllowedSources is the fixed set of sources items may carry.
var AllowedSources = map[Source]bool{
	SourceTwitter: true,
	SourceRSS:     true,
	SourceWebNews: true,
}

const (
	TitleMinLength   = 1
	TitleMaxLength   = 500
	SummaryMinLength = 10
	SummaryMaxLength = 2000
)

// Item is one normalized unit of content. Items are created by a
// collector at fetch time and never mutated afterwards; the scoring
// annotation lives on ScoredItem.
type Item struct {
	ID        string
	Title     string
	Summary   string
	URL       string
	Source    Source
	CreatedAt time.Time
	FetchedAt time.Time
	Content   string
	Metadata  map[string]any
}

// NewItem fills in a generated ID and the fetch timestamp when the
// caller leaves them empty.
func NewItem(item Item) Item {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.FetchedAt.IsZero() {
		item.FetchedAt = time.Now()
	}
	if item.Metadata == nil {
		item.Metadata = map[string]any{}
	}
	return item
}

// Validate checks the structural rules every item must satisfy before
// it may enter scoring.
func (it Item) Validate() []error {
	var errs []error

	if n := utf8.RuneCountInString(it.Title); n < TitleMinLength || n > TitleMaxLength {
		errs = append(errs, fmt.Errorf("title length must be %d-%d characters, got %d",
			TitleMinLength, TitleMaxLength, n))
	}

	if n := utf8.RuneCountInString(it.Summary); n < SummaryMinLength || n > SummaryMaxLength {
		errs = append(errs, fmt.Errorf("summary length must be %d-%d characters, got %d",
			SummaryMinLength, SummaryMaxLength, n))
	}

	if it.URL == "" {
		errs = append(errs, fmt.Errorf("url is required"))
	} else if u, err := url.Parse(it.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("url %q is not a valid http(s) address", it.URL))
	}

	if !AllowedSources[it.Source] {
		errs = append(errs, fmt.Errorf("source %q is not an allowed source", it.Source))
	}

	if it.CreatedAt.IsZero() {
		errs = append(errs, fmt.Errorf("createdAt is required"))
	}

	return errs
}

// InvalidItem pairs a rejected item with the reasons it failed.
type InvalidItem struct {
	Item   Item
	Errors []error
}

// ValidateItems splits items into structurally valid and invalid sets.
func ValidateItems(items []Item) (valid []Item, invalid []InvalidItem) {
	for _, item := range items {
		if errs := item.Validate(); len(errs) > 0 {
			invalid = append(invalid, InvalidItem{Item: item, Errors: errs})
			continue
		}
		valid = append(valid, item)
	}
	return valid, invalid
}
