package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/grantbridge/newsfeed/config"
	apperrors "github.com/grantbridge/newsfeed/internal/errors"
	"github.com/grantbridge/newsfeed/internal/logger"
	"github.com/grantbridge/newsfeed/internal/models"
)

func init() {
	logger.Init("error", "text")
}

type mockStore struct {
	mu        sync.Mutex
	articles  map[string]models.Article
	replaced  []models.Category
	failAfter int
	batches   int
	purged    int64
}

func newMockStore() *mockStore {
	return &mockStore{articles: make(map[string]models.Article), failAfter: -1}
}

func (m *mockStore) UpsertArticles(ctx context.Context, articles []models.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAfter >= 0 && m.batches == m.failAfter {
		m.batches++
		return errors.New("write failed")
	}
	m.batches++
	for _, a := range articles {
		m.articles[a.ID] = a
	}
	return nil
}

func (m *mockStore) ReplaceCategory(ctx context.Context, category models.Category, articles []models.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaced = append(m.replaced, category)
	for id, a := range m.articles {
		if a.Category == category {
			delete(m.articles, id)
		}
	}
	for _, a := range articles {
		m.articles[a.ID] = a
	}
	return nil
}

func (m *mockStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.articles {
		if a.PubDate.Before(cutoff) {
			delete(m.articles, id)
			m.purged++
		}
	}
	return m.purged, nil
}

func (m *mockStore) titles() map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	titles := make(map[string]bool, len(m.articles))
	for _, a := range m.articles {
		titles[a.Title] = true
	}
	return titles
}

func (m *mockStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.articles)
}

type mockFetcher struct {
	items map[string][]models.FeedItem
	errs  map[string]error
}

func (m *mockFetcher) Fetch(ctx context.Context, src models.FeedSource) ([]models.FeedItem, error) {
	if err, ok := m.errs[src.Name]; ok {
		return nil, err
	}
	return m.items[src.Name], nil
}

type mockSources struct {
	sources []models.FeedSource
	err     error
}

func (m *mockSources) FeedSources(ctx context.Context) ([]models.FeedSource, error) {
	return m.sources, m.err
}

type keepAllFilter struct{}

func (keepAllFilter) Keep(cat models.Category, title, snippet string) bool { return true }

type mockLocker struct {
	held     bool
	acquired int
	released int
}

func (m *mockLocker) AcquireRunLock(ctx context.Context, runID string) bool {
	m.acquired++
	return !m.held
}

func (m *mockLocker) ReleaseRunLock(ctx context.Context, runID string) {
	m.released++
}

func testConfig() config.PipelineConfig {
	return config.PipelineConfig{
		Interval:       time.Minute,
		FetchTimeout:   5 * time.Second,
		PerFeedCap:     6,
		PerCategoryCap: 6,
		WorkerCount:    4,
		RateLimit:      100,
		BatchSize:      100,
		Retention:      24 * time.Hour,
	}
}

func item(title string, published time.Time) models.FeedItem {
	return models.FeedItem{
		GUID:      "guid-" + title,
		Title:     title,
		Link:      "https://example.com/" + title,
		Published: published,
		FeedTitle: "Example Feed",
		ImageURL:  "https://example.com/img/" + title + ".jpg",
	}
}

func TestRunOnceFeedFailureIsolation(t *testing.T) {
	now := time.Now().UTC()
	fetcher := &mockFetcher{
		items: map[string][]models.FeedItem{
			"alpha": {item("alpha one", now), item("alpha two", now)},
			"gamma": {item("gamma one", now)},
		},
		errs: map[string]error{
			"beta": errors.New("connection refused"),
		},
	}
	sources := &mockSources{sources: []models.FeedSource{
		{Name: "alpha", URL: "https://a.example.com/rss", Category: models.CategoryGeneral, Enabled: true},
		{Name: "beta", URL: "https://b.example.com/rss", Category: models.CategoryGeneral, Enabled: true},
		{Name: "gamma", URL: "https://c.example.com/rss", Category: models.CategoryFunder, Enabled: true},
	}}

	store := newMockStore()
	p := New(store, sources, fetcher, keepAllFilter{}, nil, testConfig())

	summary, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if summary.FailedFeeds != 1 {
		t.Errorf("FailedFeeds = %d, want 1", summary.FailedFeeds)
	}
	if summary.TotalPersisted != 3 {
		t.Errorf("TotalPersisted = %d, want 3", summary.TotalPersisted)
	}

	titles := store.titles()
	for _, want := range []string{"alpha one", "alpha two", "gamma one"} {
		if !titles[want] {
			t.Errorf("expected article %q to be persisted", want)
		}
	}
}

func TestRunOnceDropsImagelessItems(t *testing.T) {
	now := time.Now().UTC()
	noImage := item("no image here", now)
	noImage.ImageURL = ""

	fetcher := &mockFetcher{items: map[string][]models.FeedItem{
		"alpha": {item("with image", now), noImage},
	}}
	sources := &mockSources{sources: []models.FeedSource{
		{Name: "alpha", URL: "https://a.example.com/rss", Category: models.CategoryGeneral, Enabled: true},
	}}

	store := newMockStore()
	p := New(store, sources, fetcher, keepAllFilter{}, nil, testConfig())

	summary, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if summary.TotalPersisted != 1 {
		t.Errorf("TotalPersisted = %d, want 1", summary.TotalPersisted)
	}
	if store.titles()["no image here"] {
		t.Error("imageless item should not be persisted")
	}
}

func TestRunOnceDedupesByTitle(t *testing.T) {
	now := time.Now().UTC()
	dup := item("Same Story", now)
	dup.GUID = "other-guid"
	dup.Link = "https://example.com/other"

	fetcher := &mockFetcher{items: map[string][]models.FeedItem{
		"alpha": {item("Same Story", now), dup, item("Different Story", now)},
	}}
	sources := &mockSources{sources: []models.FeedSource{
		{Name: "alpha", URL: "https://a.example.com/rss", Category: models.CategoryGeneral, Enabled: true},
	}}

	store := newMockStore()
	p := New(store, sources, fetcher, keepAllFilter{}, nil, testConfig())

	summary, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if summary.TotalPersisted != 2 {
		t.Errorf("TotalPersisted = %d, want 2", summary.TotalPersisted)
	}
}

func TestRunOnceAppliesCategoryCap(t *testing.T) {
	now := time.Now().UTC()
	var items []models.FeedItem
	for i := 0; i < 10; i++ {
		items = append(items, item(fmt.Sprintf("story %d", i), now.Add(-time.Duration(i)*time.Hour)))
	}

	fetcher := &mockFetcher{items: map[string][]models.FeedItem{"alpha": items}}
	sources := &mockSources{sources: []models.FeedSource{
		{Name: "alpha", URL: "https://a.example.com/rss", Category: models.CategoryGeneral, Enabled: true},
	}}

	store := newMockStore()
	p := New(store, sources, fetcher, keepAllFilter{}, nil, testConfig())

	summary, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if summary.TotalPersisted != 6 {
		t.Errorf("TotalPersisted = %d, want 6", summary.TotalPersisted)
	}

	// The newest six survive the cap.
	titles := store.titles()
	for i := 0; i < 6; i++ {
		if !titles[fmt.Sprintf("story %d", i)] {
			t.Errorf("expected newest story %d to survive the cap", i)
		}
	}
	for i := 6; i < 10; i++ {
		if titles[fmt.Sprintf("story %d", i)] {
			t.Errorf("expected oldest story %d to be capped out", i)
		}
	}
}

func TestRunOnceBatchFailureIsolation(t *testing.T) {
	now := time.Now().UTC()
	var items []models.FeedItem
	for i := 0; i < 6; i++ {
		items = append(items, item(fmt.Sprintf("story %d", i), now))
	}

	fetcher := &mockFetcher{items: map[string][]models.FeedItem{"alpha": items}}
	sources := &mockSources{sources: []models.FeedSource{
		{Name: "alpha", URL: "https://a.example.com/rss", Category: models.CategoryGeneral, Enabled: true},
	}}

	cfg := testConfig()
	cfg.BatchSize = 2

	store := newMockStore()
	store.failAfter = 1 // second batch fails

	p := New(store, sources, fetcher, keepAllFilter{}, nil, cfg)

	summary, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if summary.FailedBatches != 1 {
		t.Errorf("FailedBatches = %d, want 1", summary.FailedBatches)
	}
	if summary.TotalPersisted != 4 {
		t.Errorf("TotalPersisted = %d, want 4", summary.TotalPersisted)
	}
}

func TestRunOnceSkipsDisabledFeeds(t *testing.T) {
	now := time.Now().UTC()
	fetcher := &mockFetcher{items: map[string][]models.FeedItem{
		"alpha": {item("enabled story", now)},
		"beta":  {item("disabled story", now)},
	}}
	sources := &mockSources{sources: []models.FeedSource{
		{Name: "alpha", URL: "https://a.example.com/rss", Category: models.CategoryGeneral, Enabled: true},
		{Name: "beta", URL: "https://b.example.com/rss", Category: models.CategoryGeneral, Enabled: false},
	}}

	store := newMockStore()
	p := New(store, sources, fetcher, keepAllFilter{}, nil, testConfig())

	if _, err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if store.titles()["disabled story"] {
		t.Error("disabled feed should not be fetched")
	}
	if !store.titles()["enabled story"] {
		t.Error("enabled feed should be persisted")
	}
}

func TestRunOnceReplaceCategory(t *testing.T) {
	now := time.Now().UTC()
	fetcher := &mockFetcher{items: map[string][]models.FeedItem{
		"alpha": {item("fresh story", now)},
	}}
	sources := &mockSources{sources: []models.FeedSource{
		{Name: "alpha", URL: "https://a.example.com/rss", Category: models.CategoryCalifornia, Enabled: true},
	}}

	cfg := testConfig()
	cfg.ReplaceCategories = []string{"california"}

	store := newMockStore()
	stale := models.Article{ID: "stale", Title: "stale story", Category: models.CategoryCalifornia, PubDate: now}
	store.articles[stale.ID] = stale

	p := New(store, sources, fetcher, keepAllFilter{}, nil, cfg)

	if _, err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if len(store.replaced) != 1 || store.replaced[0] != models.CategoryCalifornia {
		t.Errorf("replaced = %v, want [california]", store.replaced)
	}
	if store.titles()["stale story"] {
		t.Error("stale article should be gone after replacement")
	}
	if !store.titles()["fresh story"] {
		t.Error("fresh article should be persisted after replacement")
	}
}

func TestRunOnceHeldLockSkipsRun(t *testing.T) {
	fetcher := &mockFetcher{}
	sources := &mockSources{sources: []models.FeedSource{
		{Name: "alpha", URL: "https://a.example.com/rss", Category: models.CategoryGeneral, Enabled: true},
	}}

	store := newMockStore()
	locker := &mockLocker{held: true}
	p := New(store, sources, fetcher, keepAllFilter{}, locker, testConfig())

	_, err := p.RunOnce(context.Background())
	if !errors.Is(err, apperrors.ErrAlreadyRunning) {
		t.Fatalf("RunOnce() error = %v, want ErrAlreadyRunning", err)
	}
	if locker.released != 0 {
		t.Errorf("released = %d, want 0", locker.released)
	}
	if store.count() != 0 {
		t.Errorf("store should be untouched, has %d articles", store.count())
	}
}

func TestRunOnceSourceErrorIsFatal(t *testing.T) {
	sources := &mockSources{err: errors.New("table missing")}
	p := New(newMockStore(), sources, &mockFetcher{}, keepAllFilter{}, nil, testConfig())

	if _, err := p.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error when sources cannot be loaded")
	}
}

func TestRunOnceRetentionPurge(t *testing.T) {
	now := time.Now().UTC()
	fetcher := &mockFetcher{items: map[string][]models.FeedItem{
		"alpha": {item("new story", now)},
	}}
	sources := &mockSources{sources: []models.FeedSource{
		{Name: "alpha", URL: "https://a.example.com/rss", Category: models.CategoryGeneral, Enabled: true},
	}}

	store := newMockStore()
	old := models.Article{ID: "old", Title: "old story", Category: models.CategoryGeneral, PubDate: now.Add(-48 * time.Hour)}
	store.articles[old.ID] = old

	p := New(store, sources, fetcher, keepAllFilter{}, nil, testConfig())

	summary, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if summary.Purged != 1 {
		t.Errorf("Purged = %d, want 1", summary.Purged)
	}
	if store.titles()["old story"] {
		t.Error("expired article should be purged")
	}
}

func TestRunOnceFullScenario(t *testing.T) {
	now := time.Now().UTC()

	// Feed alpha: 5 good items plus one without an image and one duplicate
	// title. Feed beta: times out. Feed gamma: 3 good items in the same
	// category as alpha.
	var alphaItems []models.FeedItem
	for i := 0; i < 5; i++ {
		alphaItems = append(alphaItems, item(fmt.Sprintf("alpha story %d", i), now.Add(-time.Duration(i)*time.Minute)))
	}
	imageless := item("alpha imageless", now)
	imageless.ImageURL = ""
	dup := item("alpha story 0", now.Add(-time.Hour))
	dup.GUID = "dup-guid"
	alphaItems = append(alphaItems, imageless, dup)

	var gammaItems []models.FeedItem
	for i := 0; i < 3; i++ {
		gammaItems = append(gammaItems, item(fmt.Sprintf("gamma story %d", i), now.Add(-time.Duration(10+i)*time.Minute)))
	}

	fetcher := &mockFetcher{
		items: map[string][]models.FeedItem{
			"alpha": alphaItems,
			"gamma": gammaItems,
		},
		errs: map[string]error{
			"beta": context.DeadlineExceeded,
		},
	}
	sources := &mockSources{sources: []models.FeedSource{
		{Name: "alpha", URL: "https://a.example.com/rss", Category: models.CategoryGeneral, Enabled: true},
		{Name: "beta", URL: "https://b.example.com/rss", Category: models.CategoryGeneral, Enabled: true},
		{Name: "gamma", URL: "https://c.example.com/rss", Category: models.CategoryGeneral, Enabled: true},
	}}

	store := newMockStore()
	p := New(store, sources, fetcher, keepAllFilter{}, nil, testConfig())

	summary, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if summary.FailedFeeds != 1 {
		t.Errorf("FailedFeeds = %d, want 1", summary.FailedFeeds)
	}
	// 10 items fetched; the imageless item and the duplicate title drop,
	// leaving 8, and the category cap keeps the newest 6.
	if summary.TotalFetched != 10 {
		t.Errorf("TotalFetched = %d, want 10", summary.TotalFetched)
	}
	if summary.TotalPersisted != 6 {
		t.Errorf("TotalPersisted = %d, want 6", summary.TotalPersisted)
	}

	titles := store.titles()
	if titles["alpha imageless"] {
		t.Error("imageless item should not survive")
	}
	// The union of both healthy feeds is present: the 5 newest alpha stories
	// and the newest gamma story fill the cap of 6.
	for i := 0; i < 5; i++ {
		if !titles[fmt.Sprintf("alpha story %d", i)] {
			t.Errorf("expected alpha story %d to be persisted", i)
		}
	}
	if !titles["gamma story 0"] {
		t.Error("expected gamma story 0 to be persisted")
	}
}

func TestDedupeByTitleKeepsFirst(t *testing.T) {
	articles := []models.Article{
		{ID: "1", Title: "Same Story"},
		{ID: "2", Title: "same story "},
		{ID: "3", Title: "Other"},
	}

	got := dedupeByTitle(articles)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "1" {
		t.Errorf("first representative = %s, want 1", got[0].ID)
	}
}
