package store

import (
	"context"
	"time"

	pgx "github.com/jackc/pgx/v5"

	"github.com/grantbridge/newsfeed/internal/models"
)

// Store defines the interface for article storage
type Store interface {
	UpsertArticles(ctx context.Context, articles []models.Article) error
	ReplaceCategory(ctx context.Context, category models.Category, articles []models.Article) error
	QueryArticles(ctx context.Context, q models.ArticleQuery) ([]models.Article, error)
	GetArticle(ctx context.Context, id string) (*models.Article, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Health(ctx context.Context) error
}

// Database interface for dependency injection
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Health(ctx context.Context) error
	IsConfigured() bool
}

// New creates a new store instance
func New(db Database) Store {
	if db != nil && db.IsConfigured() {
		return NewPostgresStore(db)
	}
	// Fallback to in-memory store if no database
	return NewInMemoryStore()
}
