package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grantbridge/newsfeed/config"
	apperrors "github.com/grantbridge/newsfeed/internal/errors"
	"github.com/grantbridge/newsfeed/internal/logger"
	"github.com/grantbridge/newsfeed/internal/metrics"
)

// ErrNotConfigured is returned when no DATABASE_URL was supplied.
var ErrNotConfigured = errors.New("database not configured")

// DB represents a database connection pool. A nil pool means the service runs
// against the in-memory store.
type DB struct {
	pool *pgxpool.Pool
	cfg  config.DatabaseConfig
}

// New creates a new database connection
func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	if cfg.URL == "" {
		logger.Info("DATABASE_URL not set; using in-memory store only")
		return &DB{pool: nil, cfg: cfg}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	db := &DB{pool: pool, cfg: cfg}

	go db.collectMetrics(ctx)

	logger.Info("Database connection established",
		"max_conns", cfg.MaxConns,
		"min_conns", cfg.MinConns,
	)

	return db, nil
}

// Close closes the database connection
func (d *DB) Close(ctx context.Context) {
	if d.pool != nil {
		d.pool.Close()
		logger.Info("Database connection closed")
	}
}

// collectMetrics periodically collects database metrics
func (d *DB) collectMetrics(ctx context.Context) {
	if d.pool == nil {
		return
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stat := d.pool.Stat()
			metrics.SetDBConnectionsActive(float64(stat.AcquiredConns()))
		}
	}
}

// Exec executes a statement and reports the number of rows affected
func (d *DB) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	if d.pool == nil {
		return 0, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tag, err := d.pool.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error("Database exec failed", "error", err, "sql", sql)
		metrics.RecordDBQuery("exec", "error")
		return 0, apperrors.DatabaseError{Operation: "exec", Err: err}
	}
	metrics.RecordDBQuery("exec", "success")

	return tag.RowsAffected(), nil
}

// Query executes a query and returns rows
func (d *DB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if d.pool == nil {
		return nil, ErrNotConfigured
	}

	// No timeout wrapper here: a deferred cancel would tear down the context
	// before the caller has iterated the rows. The caller's context bounds
	// the query.
	rows, err := d.pool.Query(ctx, sql, args...)
	if err != nil {
		logger.Error("Database query failed", "error", err, "sql", sql)
		metrics.RecordDBQuery("query", "error")
		return nil, apperrors.DatabaseError{Operation: "query", Err: err}
	}
	metrics.RecordDBQuery("query", "success")

	return rows, nil
}

// Health checks database connectivity
func (d *DB) Health(ctx context.Context) error {
	if d.pool == nil {
		return ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return d.pool.Ping(ctx)
}

// IsConfigured returns true if database is configured
func (d *DB) IsConfigured() bool {
	return d.pool != nil
}
