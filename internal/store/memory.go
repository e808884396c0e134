package store

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "github.com/grantbridge/newsfeed/internal/errors"
	"github.com/grantbridge/newsfeed/internal/models"
)

// InMemoryStore implements Store using in-memory storage
type InMemoryStore struct {
	mu       sync.RWMutex
	articles map[string]models.Article
}

// NewInMemoryStore creates a new in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		articles: make(map[string]models.Article),
	}
}

// UpsertArticles stores articles in memory keyed on id
func (s *InMemoryStore) UpsertArticles(ctx context.Context, articles []models.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, a := range articles {
		if existing, ok := s.articles[a.ID]; ok {
			a.CreatedAt = existing.CreatedAt
		} else {
			a.CreatedAt = now
		}
		a.UpdatedAt = now
		s.articles[a.ID] = a
	}

	return nil
}

// ReplaceCategory drops a category's rows and installs the fresh set
func (s *InMemoryStore) ReplaceCategory(ctx context.Context, category models.Category, articles []models.Article) error {
	s.mu.Lock()
	for id, a := range s.articles {
		if a.Category == category {
			delete(s.articles, id)
		}
	}
	s.mu.Unlock()

	return s.UpsertArticles(ctx, articles)
}

// QueryArticles retrieves articles from memory, newest first
func (s *InMemoryStore) QueryArticles(ctx context.Context, q models.ArticleQuery) ([]models.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Article
	for _, a := range s.articles {
		if q.Matches(a) {
			result = append(result, a)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].PubDate.After(result[j].PubDate)
	})

	if q.Offset > 0 && q.Offset < len(result) {
		result = result[q.Offset:]
	} else if q.Offset >= len(result) && q.Offset > 0 {
		result = []models.Article{}
	}

	if q.Limit > 0 && q.Limit < len(result) {
		result = result[:q.Limit]
	}

	return result, nil
}

// GetArticle retrieves a single article by id, ErrNotFound when absent
func (s *InMemoryStore) GetArticle(ctx context.Context, id string) (*models.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.articles[id]; ok {
		return &a, nil
	}
	return nil, apperrors.ErrNotFound
}

// PurgeOlderThan removes articles whose pub date predates the cutoff
func (s *InMemoryStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for id, a := range s.articles {
		if a.PubDate.Before(cutoff) {
			delete(s.articles, id)
			purged++
		}
	}

	return purged, nil
}

// Health always returns nil for in-memory store
func (s *InMemoryStore) Health(ctx context.Context) error {
	return nil
}
