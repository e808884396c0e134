package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	apperrors "github.com/grantbridge/newsfeed/internal/errors"
	"github.com/grantbridge/newsfeed/internal/models"
)

// Fetcher retrieves and parses RSS/Atom feeds and normalizes items into the
// canonical FeedItem shape in a single adapter step. Failures are scoped to
// one feed; the caller decides how to aggregate.
type Fetcher struct {
	parser     *gofeed.Parser
	timeout    time.Duration
	perFeedCap int
}

// New creates a feed fetcher with a per-feed timeout and item cap.
func New(timeout time.Duration, perFeedCap int) *Fetcher {
	parser := gofeed.NewParser()
	parser.UserAgent = "grantbridge-newsfeed/1.0"
	return &Fetcher{
		parser:     parser,
		timeout:    timeout,
		perFeedCap: perFeedCap,
	}
}

// Fetch retrieves one configured feed. Network errors, timeouts, and
// malformed payloads surface as a FeedError for this feed only.
func (f *Fetcher) Fetch(ctx context.Context, src models.FeedSource) ([]models.FeedItem, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	feed, err := f.parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
		}
		return nil, apperrors.FeedError{Feed: src.Name, URL: src.URL, Err: err}
	}

	feedTitle := src.Name
	if feedTitle == "" {
		feedTitle = feed.Title
	}

	// Cap per feed so a noisy source cannot dominate a category.
	raw := feed.Items
	if f.perFeedCap > 0 && len(raw) > f.perFeedCap {
		raw = raw[:f.perFeedCap]
	}

	items := make([]models.FeedItem, 0, len(raw))
	for _, entry := range raw {
		items = append(items, normalize(entry, feedTitle))
	}

	return items, nil
}

// normalize maps one gofeed item into the canonical shape, resolving the
// item's representative image along the way.
func normalize(entry *gofeed.Item, feedTitle string) models.FeedItem {
	var published time.Time
	if entry.PublishedParsed != nil {
		published = *entry.PublishedParsed
	} else if entry.UpdatedParsed != nil {
		published = *entry.UpdatedParsed
	}

	return models.FeedItem{
		GUID:        strings.TrimSpace(entry.GUID),
		Title:       strings.TrimSpace(entry.Title),
		Link:        strings.TrimSpace(entry.Link),
		Description: entry.Description,
		Content:     entry.Content,
		Published:   published,
		FeedTitle:   feedTitle,
		ImageURL:    ExtractImage(entry),
	}
}
