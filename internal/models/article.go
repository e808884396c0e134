package models

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/grantbridge/newsfeed/internal/errors"
)

// Category partitions articles for retrieval. It is assigned per feed source
// at configuration time, never inferred from content.
type Category string

const (
	CategoryGeneral    Category = "general"
	CategoryFunder     Category = "funder"
	CategoryNonprofit  Category = "nonprofit"
	CategoryCalifornia Category = "california"
)

// Categories returns the fixed category enumeration.
func Categories() []Category {
	return []Category{CategoryGeneral, CategoryFunder, CategoryNonprofit, CategoryCalifornia}
}

// ParseCategory validates a raw category string against the enumeration.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories() {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidCategory, s)
}

// Article is the normalized, persisted representation of a feed item that
// passed all filters.
type Article struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Summary     string    `json:"summary" db:"summary"`
	FullContent string    `json:"full_content" db:"full_content"`
	URL         string    `json:"url" db:"url"`
	ImageURL    string    `json:"image_url" db:"image_url"`
	PubDate     time.Time `json:"pub_date" db:"pub_date"`
	SourceName  string    `json:"source_name" db:"source_name"`
	Category    Category  `json:"category" db:"category"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// TimeAgo derives the display-relative age label from PubDate. Computed at
// read time so the label stays accurate regardless of ingestion cadence.
func (a Article) TimeAgo(now time.Time) string {
	return TimeAgoLabel(a.PubDate, now)
}

// TimeAgoLabel buckets an article age into a coarse label. A zero pub date
// yields "Recently" rather than failing.
func TimeAgoLabel(pubDate, now time.Time) string {
	if pubDate.IsZero() {
		return "Recently"
	}
	age := now.Sub(pubDate)
	switch {
	case age < time.Hour:
		return "Just now"
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}

// FeedItem is the canonical item shape produced by the fetcher. Heterogeneous
// feed dialects are normalized into it at ingestion so the rest of the
// pipeline never sees format variance.
type FeedItem struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Content     string
	Published   time.Time
	FeedTitle   string
	ImageURL    string
}

// FeedSource is the unit of ingestion configuration.
type FeedSource struct {
	Name     string   `json:"name" db:"name"`
	URL      string   `json:"url" db:"url"`
	Category Category `json:"category" db:"category"`
	Enabled  bool     `json:"enabled" db:"enabled"`
}

// Keyword rule polarity values.
const (
	PolarityExclude = "exclude"
	PolarityAllow   = "allow"
)

// KeywordRule is a single relevance-filter rule. Category is empty when the
// rule applies to all categories.
type KeywordRule struct {
	Keyword  string   `json:"keyword" db:"keyword"`
	Polarity string   `json:"polarity" db:"polarity"`
	Category Category `json:"category" db:"category"`
}

// ArticleQuery represents query parameters for filtering articles.
type ArticleQuery struct {
	Category Category  `json:"category"`
	Since    time.Time `json:"since"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}

// Matches checks if an article matches the query criteria.
func (q ArticleQuery) Matches(a Article) bool {
	if q.Category != "" && a.Category != q.Category {
		return false
	}
	if !q.Since.IsZero() && a.PubDate.Before(q.Since) {
		return false
	}
	return true
}
