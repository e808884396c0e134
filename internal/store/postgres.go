package store

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/grantbridge/newsfeed/internal/errors"
	"github.com/grantbridge/newsfeed/internal/models"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db Database
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(db Database) *PostgresStore {
	return &PostgresStore{db: db}
}

const upsertArticleSQL = `
	INSERT INTO articles (
		id, title, summary, full_content, url, image_url,
		pub_date, source_name, category
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9
	)
	ON CONFLICT (id) DO UPDATE SET
		title = EXCLUDED.title,
		summary = EXCLUDED.summary,
		full_content = EXCLUDED.full_content,
		url = EXCLUDED.url,
		image_url = EXCLUDED.image_url,
		pub_date = EXCLUDED.pub_date,
		source_name = EXCLUDED.source_name,
		category = EXCLUDED.category,
		updated_at = NOW()
`

// UpsertArticles inserts or updates articles keyed on id. A second write with
// the same id overwrites rather than duplicates.
func (s *PostgresStore) UpsertArticles(ctx context.Context, articles []models.Article) error {
	if len(articles) == 0 {
		return nil
	}

	for _, a := range articles {
		_, err := s.db.Exec(ctx, upsertArticleSQL,
			a.ID, a.Title, a.Summary, a.FullContent, a.URL, a.ImageURL,
			a.PubDate, a.SourceName, string(a.Category),
		)
		if err != nil {
			return fmt.Errorf("upsert article %s: %w", a.ID, err)
		}
	}

	return nil
}

// ReplaceCategory deletes all rows for a category, then inserts the fresh set.
func (s *PostgresStore) ReplaceCategory(ctx context.Context, category models.Category, articles []models.Article) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM articles WHERE category = $1`, string(category)); err != nil {
		return fmt.Errorf("clear category %s: %w", category, err)
	}
	return s.UpsertArticles(ctx, articles)
}

// QueryArticles retrieves articles based on query parameters, newest first.
func (s *PostgresStore) QueryArticles(ctx context.Context, q models.ArticleQuery) ([]models.Article, error) {
	query := `
		SELECT id, title, summary, full_content, url, image_url,
			   pub_date, source_name, category, created_at, updated_at
		FROM articles
		WHERE 1=1
	`

	var args []any
	argIndex := 1

	if q.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", argIndex)
		args = append(args, string(q.Category))
		argIndex++
	}

	if !q.Since.IsZero() {
		query += fmt.Sprintf(" AND pub_date >= $%d", argIndex)
		args = append(args, q.Since)
		argIndex++
	}

	query += " ORDER BY pub_date DESC"

	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, q.Limit)
		argIndex++
	}

	if q.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, q.Offset)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []models.Article
	for rows.Next() {
		var a models.Article
		var category string
		err := rows.Scan(
			&a.ID, &a.Title, &a.Summary, &a.FullContent, &a.URL, &a.ImageURL,
			&a.PubDate, &a.SourceName, &category, &a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		a.Category = models.Category(category)
		articles = append(articles, a)
	}

	return articles, rows.Err()
}

// GetArticle retrieves a single article by id, ErrNotFound when absent.
func (s *PostgresStore) GetArticle(ctx context.Context, id string) (*models.Article, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, title, summary, full_content, url, image_url,
			   pub_date, source_name, category, created_at, updated_at
		FROM articles
		WHERE id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get article %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get article %s: %w", id, err)
		}
		return nil, apperrors.ErrNotFound
	}

	var a models.Article
	var category string
	err = rows.Scan(
		&a.ID, &a.Title, &a.Summary, &a.FullContent, &a.URL, &a.ImageURL,
		&a.PubDate, &a.SourceName, &category, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan article %s: %w", id, err)
	}
	a.Category = models.Category(category)
	return &a, nil
}

// PurgeOlderThan removes articles whose pub_date predates the cutoff. The
// retention sweep keeps the store bounded to recent news.
func (s *PostgresStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.db.Exec(ctx, `DELETE FROM articles WHERE pub_date < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge articles: %w", err)
	}
	return n, nil
}

// Health checks the database connection
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.Health(ctx)
}
