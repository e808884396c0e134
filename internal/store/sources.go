package store

import (
	"context"
	"fmt"

	"github.com/grantbridge/newsfeed/internal/logger"
	"github.com/grantbridge/newsfeed/internal/models"
)

// SourceProvider supplies ingestion configuration: the feed list and the
// keyword rule set.
type SourceProvider interface {
	FeedSources(ctx context.Context) ([]models.FeedSource, error)
	KeywordRules(ctx context.Context) ([]models.KeywordRule, error)
}

// StaticSourceProvider serves a fixed configuration, the deployment default
// when no feed_sources table is populated.
type StaticSourceProvider struct {
	Sources []models.FeedSource
	Rules   []models.KeywordRule
}

func (p *StaticSourceProvider) FeedSources(ctx context.Context) ([]models.FeedSource, error) {
	return p.Sources, nil
}

func (p *StaticSourceProvider) KeywordRules(ctx context.Context) ([]models.KeywordRule, error) {
	return p.Rules, nil
}

// DBSourceProvider reads feed sources and keyword rules from configuration
// tables, falling back to a static provider when the tables are empty or the
// database is not configured. A reachable-but-failing database is a
// configuration load failure and aborts the run.
type DBSourceProvider struct {
	db       Database
	fallback SourceProvider
}

// NewSourceProvider wires the table-backed provider over the static defaults.
func NewSourceProvider(db Database, fallback SourceProvider) SourceProvider {
	if db == nil || !db.IsConfigured() {
		return fallback
	}
	return &DBSourceProvider{db: db, fallback: fallback}
}

func (p *DBSourceProvider) FeedSources(ctx context.Context) ([]models.FeedSource, error) {
	rows, err := p.db.Query(ctx, `
		SELECT name, url, category, enabled
		FROM feed_sources
		ORDER BY category, name
	`)
	if err != nil {
		return nil, fmt.Errorf("load feed sources: %w", err)
	}
	defer rows.Close()

	var sources []models.FeedSource
	for rows.Next() {
		var s models.FeedSource
		var category string
		if err := rows.Scan(&s.Name, &s.URL, &category, &s.Enabled); err != nil {
			return nil, fmt.Errorf("scan feed source: %w", err)
		}
		s.Category = models.Category(category)
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load feed sources: %w", err)
	}

	if len(sources) == 0 {
		logger.Debug("feed_sources table empty, using static configuration")
		return p.fallback.FeedSources(ctx)
	}
	return sources, nil
}

func (p *DBSourceProvider) KeywordRules(ctx context.Context) ([]models.KeywordRule, error) {
	rows, err := p.db.Query(ctx, `
		SELECT keyword, polarity, COALESCE(category, '')
		FROM keyword_rules
	`)
	if err != nil {
		return nil, fmt.Errorf("load keyword rules: %w", err)
	}
	defer rows.Close()

	var rules []models.KeywordRule
	for rows.Next() {
		var r models.KeywordRule
		var category string
		if err := rows.Scan(&r.Keyword, &r.Polarity, &category); err != nil {
			return nil, fmt.Errorf("scan keyword rule: %w", err)
		}
		r.Category = models.Category(category)
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load keyword rules: %w", err)
	}

	if len(rules) == 0 {
		logger.Debug("keyword_rules table empty, using static configuration")
		return p.fallback.KeywordRules(ctx)
	}
	return rules, nil
}
