package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/grantbridge/newsfeed/config"
	"github.com/grantbridge/newsfeed/internal/api"
	"github.com/grantbridge/newsfeed/internal/cache"
	"github.com/grantbridge/newsfeed/internal/database"
	"github.com/grantbridge/newsfeed/internal/fetcher"
	"github.com/grantbridge/newsfeed/internal/filter"
	"github.com/grantbridge/newsfeed/internal/logger"
	"github.com/grantbridge/newsfeed/internal/metrics"
	middlewares "github.com/grantbridge/newsfeed/internal/middleware"
	"github.com/grantbridge/newsfeed/internal/pipeline"
	"github.com/grantbridge/newsfeed/internal/store"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting newsfeed application",
		"version", Version,
		"build_time", BuildTime,
		"git_commit", GitCommit,
	)

	// Initialize metrics
	if cfg.Metrics.Enabled {
		metrics.Init()
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database", "error", err)
	}
	defer db.Close(ctx)

	// Initialize store
	articleStore := store.New(db)

	// Initialize cache (disabled when REDIS_URL is unset)
	articleCache, err := cache.New(cfg.Redis.URL, cfg.Redis.CacheTTL, cfg.Redis.LockTTL)
	if err != nil {
		logger.Fatal("Failed to initialize cache", "error", err)
	}
	if articleCache != nil {
		defer articleCache.Close()
	}

	// Feed and rule configuration: table-backed when the database holds
	// rows, static defaults otherwise.
	fallback := &store.StaticSourceProvider{
		Sources: pipeline.DefaultFeedSources(),
		Rules:   filter.DefaultRules(),
	}
	sources := store.NewSourceProvider(db, fallback)

	rules, err := sources.KeywordRules(ctx)
	if err != nil {
		logger.Fatal("Failed to load keyword rules", "error", err)
	}
	relevance := filter.FromRules(rules)

	feedFetcher := fetcher.New(cfg.Pipeline.FetchTimeout, cfg.Pipeline.PerFeedCap)

	// Initialize pipeline
	var locker pipeline.Locker
	if articleCache != nil {
		locker = articleCache
	}
	ingestPipeline := pipeline.New(articleStore, sources, feedFetcher, relevance, locker, cfg.Pipeline)

	// Start pipeline in background
	go func() {
		if err := ingestPipeline.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("Pipeline error", "error", err)
		}
	}()

	// Setup HTTP server
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.Logging)
	r.Use(middlewares.Metrics)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.ReadTimeout))
	r.Use(middlewares.Security)
	r.Use(middlewares.CORS(cfg.Server.CORSAllowedOrigins))

	// Initialize API handlers
	apiHandler := api.NewHandler(articleStore, articleCache, ingestPipeline, cfg.Ingest.Token, cfg.Server.CacheMaxAge, Version, BuildTime, GitCommit)
	apiHandler.RegisterRoutes(r)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		go startMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	// HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting HTTP server", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

func startMetricsServer(port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info("Starting metrics server", "address", addr, "path", path)

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics server failed", "error", err)
	}
}
