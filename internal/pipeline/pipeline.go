package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/grantbridge/newsfeed/config"
	apperrors "github.com/grantbridge/newsfeed/internal/errors"
	"github.com/grantbridge/newsfeed/internal/logger"
	"github.com/grantbridge/newsfeed/internal/metrics"
	"github.com/grantbridge/newsfeed/internal/models"
	"github.com/grantbridge/newsfeed/pkg/utils"
)

const summaryMaxLen = 200

// Fetcher retrieves one feed's items
type Fetcher interface {
	Fetch(ctx context.Context, src models.FeedSource) ([]models.FeedItem, error)
}

// Filter decides whether an item belongs in the curated output
type Filter interface {
	Keep(cat models.Category, title, snippet string) bool
}

// Store interface for article persistence
type Store interface {
	UpsertArticles(ctx context.Context, articles []models.Article) error
	ReplaceCategory(ctx context.Context, category models.Category, articles []models.Article) error
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SourceProvider supplies the configured feed list
type SourceProvider interface {
	FeedSources(ctx context.Context) ([]models.FeedSource, error)
}

// Locker serializes overlapping ingestion runs, best effort. A nil Locker
// disables locking.
type Locker interface {
	AcquireRunLock(ctx context.Context, runID string) bool
	ReleaseRunLock(ctx context.Context, runID string)
}

// Invalidator drops cached responses for categories touched by a run. The
// locker is checked for this at runtime so a cache-less deployment still works.
type Invalidator interface {
	InvalidateArticles(ctx context.Context, cats ...models.Category)
}

// Summary reports the outcome of one ingestion run.
type Summary struct {
	RunID          string        `json:"run_id"`
	TotalFetched   int           `json:"total_fetched"`
	TotalPersisted int           `json:"total_persisted"`
	FailedFeeds    int           `json:"failed_feeds"`
	FailedBatches  int           `json:"failed_batches"`
	Purged         int64         `json:"purged"`
	Duration       time.Duration `json:"duration"`
}

// Pipeline coordinates concurrent fetching, filtering, deduplication, and
// persistence of feed items.
type Pipeline struct {
	store   Store
	sources SourceProvider
	fetcher Fetcher
	filter  Filter
	locker  Locker
	cfg     config.PipelineConfig
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	replace map[models.Category]bool
	mu      sync.RWMutex
	running bool
}

// New creates a new pipeline instance
func New(store Store, sources SourceProvider, fetcher Fetcher, filter Filter, locker Locker, cfg config.PipelineConfig) *Pipeline {
	replace := make(map[models.Category]bool, len(cfg.ReplaceCategories))
	for _, c := range cfg.ReplaceCategories {
		if cat, err := models.ParseCategory(c); err == nil {
			replace[cat] = true
		} else {
			logger.Warn("Ignoring unknown replace category", "category", c)
		}
	}

	p := &Pipeline{
		store:   store,
		sources: sources,
		fetcher: fetcher,
		filter:  filter,
		locker:  locker,
		cfg:     cfg,
		sem:     semaphore.NewWeighted(int64(cfg.WorkerCount)),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), int(cfg.RateLimit)),
		replace: replace,
	}

	logger.Info("Pipeline initialized",
		"interval", cfg.Interval,
		"workers", cfg.WorkerCount,
		"rate_limit", cfg.RateLimit,
		"per_feed_cap", cfg.PerFeedCap,
		"per_category_cap", cfg.PerCategoryCap,
	)

	return p
}

// Run executes ingestion on the configured interval until the context is
// cancelled, with an immediate first run.
func (p *Pipeline) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return apperrors.ErrAlreadyRunning
	}
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	logger.Info("Starting ingestion loop", "interval", p.cfg.Interval)

	if _, err := p.RunOnce(ctx); err != nil {
		logger.Error("Initial ingestion run failed", "error", err)
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Ingestion loop stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.RunOnce(ctx); err != nil {
				logger.Error("Ingestion run failed", "error", err)
			}
		}
	}
}

// IsRunning returns whether the interval loop is active
func (p *Pipeline) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

type fetchResult struct {
	src   models.FeedSource
	items []models.FeedItem
	err   error
}

// RunOnce executes a single ingestion run: fetch all feeds concurrently,
// filter and normalize per item, dedupe, persist, then sweep retention.
// Each run is independent and idempotent with respect to article ids.
func (p *Pipeline) RunOnce(ctx context.Context) (Summary, error) {
	start := time.Now()
	summary := Summary{RunID: uuid.NewString()}

	if p.locker != nil {
		if !p.locker.AcquireRunLock(ctx, summary.RunID) {
			logger.Info("Skipping run, previous run still holds the lock", "run_id", summary.RunID)
			return summary, apperrors.ErrAlreadyRunning
		}
		defer p.locker.ReleaseRunLock(ctx, summary.RunID)
	}

	// Configuration load failures are fatal to the run; everything below
	// this point degrades per feed or per batch instead.
	srcs, err := p.sources.FeedSources(ctx)
	if err != nil {
		return summary, apperrors.PipelineError{Stage: "sources", Err: err}
	}

	results := p.fetchAll(ctx, srcs)

	fetchTime := time.Now().UTC()
	byCategory := make(map[models.Category][]models.Article)
	for _, res := range results {
		if res.err != nil {
			summary.FailedFeeds++
			metrics.RecordFeedFetch(res.src.Name, "fetch_error")
			logger.Warn("Feed fetch failed", "feed", res.src.Name, "error", res.err)
			continue
		}
		metrics.RecordFeedFetch(res.src.Name, "success")
		summary.TotalFetched += len(res.items)

		for _, item := range res.items {
			article, ok := p.buildArticle(item, res.src.Category, fetchTime)
			if !ok {
				continue
			}
			byCategory[res.src.Category] = append(byCategory[res.src.Category], article)
		}
	}

	var touched []models.Category
	for cat, articles := range byCategory {
		articles = dedupeByTitle(articles)
		sort.Slice(articles, func(i, j int) bool {
			return articles[i].PubDate.After(articles[j].PubDate)
		})
		if p.cfg.PerCategoryCap > 0 && len(articles) > p.cfg.PerCategoryCap {
			articles = articles[:p.cfg.PerCategoryCap]
		}

		persisted, failed := p.writeCategory(ctx, cat, articles)
		summary.TotalPersisted += persisted
		summary.FailedBatches += failed
		if persisted > 0 {
			touched = append(touched, cat)
		}
	}

	if inv, ok := p.locker.(Invalidator); ok && len(touched) > 0 {
		inv.InvalidateArticles(ctx, touched...)
	}

	if p.cfg.Retention > 0 {
		purged, err := p.store.PurgeOlderThan(ctx, time.Now().UTC().Add(-p.cfg.Retention))
		if err != nil {
			logger.Error("Retention sweep failed", "error", err)
		} else {
			summary.Purged = purged
		}
	}

	summary.Duration = time.Since(start)
	metrics.RecordPipelineRun(summary.Duration, summary.TotalPersisted)
	logger.Info("Ingestion run completed",
		"run_id", summary.RunID,
		"fetched", summary.TotalFetched,
		"persisted", summary.TotalPersisted,
		"failed_feeds", summary.FailedFeeds,
		"failed_batches", summary.FailedBatches,
		"purged", summary.Purged,
		"duration_ms", summary.Duration.Milliseconds(),
	)

	return summary, nil
}

// fetchAll fans out one fetch task per enabled feed, bounded by the worker
// semaphore and the outbound rate limiter. Every task settles; a failed feed
// resolves to its error rather than cancelling siblings.
func (p *Pipeline) fetchAll(ctx context.Context, srcs []models.FeedSource) []fetchResult {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []fetchResult
	)

	for _, src := range srcs {
		if !src.Enabled {
			continue
		}
		src := src
		wg.Add(1)

		go func() {
			defer wg.Done()

			res := fetchResult{src: src}
			if err := p.sem.Acquire(ctx, 1); err != nil {
				res.err = err
			} else {
				defer p.sem.Release(1)
				if err := p.limiter.Wait(ctx); err != nil {
					res.err = err
				} else {
					res.items, res.err = p.fetcher.Fetch(ctx, src)
				}
			}

			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}()
	}

	wg.Wait()
	return results
}

// buildArticle normalizes one feed item into an Article, applying the image
// requirement and the relevance filter. Returns false when the item is
// dropped.
func (p *Pipeline) buildArticle(item models.FeedItem, cat models.Category, fetchTime time.Time) (models.Article, bool) {
	// Image presence is a hard filter: the cards downstream are
	// image-bearing by requirement.
	if item.ImageURL == "" {
		return models.Article{}, false
	}

	title := strings.TrimSpace(item.Title)
	if title == "" || item.Link == "" {
		return models.Article{}, false
	}

	snippet := utils.StripHTML(item.Description)
	if snippet == "" {
		snippet = utils.StripHTML(item.Content)
	}

	if !p.filter.Keep(cat, title, snippet) {
		return models.Article{}, false
	}

	pubDate := item.Published
	if pubDate.IsZero() {
		pubDate = fetchTime
	}

	fullContent := item.Content
	if fullContent == "" {
		fullContent = item.Description
	}

	return models.Article{
		ID:          utils.ArticleID(item.GUID, item.Link),
		Title:       title,
		Summary:     utils.Truncate(snippet, summaryMaxLen),
		FullContent: fullContent,
		URL:         item.Link,
		ImageURL:    item.ImageURL,
		PubDate:     pubDate.UTC(),
		SourceName:  item.FeedTitle,
		Category:    cat,
	}, true
}

// writeCategory persists one category's articles in batches. A failed batch
// is logged and counted; sibling batches still get written.
func (p *Pipeline) writeCategory(ctx context.Context, cat models.Category, articles []models.Article) (persisted, failedBatches int) {
	if len(articles) == 0 {
		return 0, 0
	}

	// Full replacement clears the category first, then falls through to the
	// same batched writes.
	if p.replace[cat] {
		if err := p.store.ReplaceCategory(ctx, cat, nil); err != nil {
			logger.Error("Category replacement failed", "category", cat, "error", err)
			return 0, 1
		}
	}

	batchSize := p.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = len(articles)
	}

	for i := 0; i < len(articles); i += batchSize {
		end := i + batchSize
		if end > len(articles) {
			end = len(articles)
		}

		batch := articles[i:end]
		if err := p.store.UpsertArticles(ctx, batch); err != nil {
			logger.Error("Batch write failed",
				"category", cat,
				"batch_start", i,
				"batch_size", len(batch),
				"error", err,
			)
			failedBatches++
			continue
		}
		persisted += len(batch)
	}

	return persisted, failedBatches
}

// dedupeByTitle collapses items sharing a trimmed title within one run,
// keeping the first representative. Cross-run dedupe is the upsert key's job.
func dedupeByTitle(articles []models.Article) []models.Article {
	seen := make(map[string]struct{}, len(articles))
	out := articles[:0]
	for _, a := range articles {
		key := strings.ToLower(strings.TrimSpace(a.Title))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}

// String implements fmt.Stringer for run summaries in logs and responses.
func (s Summary) String() string {
	return fmt.Sprintf("run %s: fetched=%d persisted=%d failed_feeds=%d failed_batches=%d in %s",
		s.RunID, s.TotalFetched, s.TotalPersisted, s.FailedFeeds, s.FailedBatches, s.Duration)
}
