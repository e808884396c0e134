package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/grantbridge/newsfeed/internal/cache"
	apperrors "github.com/grantbridge/newsfeed/internal/errors"
	"github.com/grantbridge/newsfeed/internal/logger"
	middlewares "github.com/grantbridge/newsfeed/internal/middleware"
	"github.com/grantbridge/newsfeed/internal/models"
	"github.com/grantbridge/newsfeed/internal/pipeline"
	"github.com/grantbridge/newsfeed/internal/store"
)

const defaultNewsLimit = 50

// Trigger starts an ingestion run on demand
type Trigger interface {
	RunOnce(ctx context.Context) (pipeline.Summary, error)
}

// Handler handles HTTP requests for the API
type Handler struct {
	store       store.Store
	cache       *cache.Cache
	trigger     Trigger
	ingestToken string
	cacheMaxAge time.Duration
	version     string
	buildTime   string
	gitCommit   string
	startTime   time.Time
}

// NewHandler creates a new API handler
func NewHandler(store store.Store, cache *cache.Cache, trigger Trigger, ingestToken string, cacheMaxAge time.Duration, version, buildTime, gitCommit string) *Handler {
	return &Handler{
		store:       store,
		cache:       cache,
		trigger:     trigger,
		ingestToken: ingestToken,
		cacheMaxAge: cacheMaxAge,
		version:     version,
		buildTime:   buildTime,
		gitCommit:   gitCommit,
		startTime:   time.Now(),
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.MethodNotAllowed(h.methodNotAllowedHandler)

	r.Route("/v1", func(r chi.Router) {
		// Health check endpoints
		r.Get("/health", h.healthHandler)
		r.Get("/health/ready", h.readinessHandler)
		r.Get("/health/live", h.livenessHandler)

		// API endpoints
		r.Get("/news/article/{id}", h.getArticleHandler)
		r.Get("/news/{category}", h.getNewsHandler)

		// Manual ingestion trigger (token protected)
		r.With(middlewares.BearerToken(h.ingestToken)).Post("/ingest/run", h.ingestRunHandler)

		// System info
		r.Get("/version", h.versionHandler)
	})

	// Root health check
	r.Get("/health", h.healthHandler)
}

// articleView is the wire shape of one article. Age labels are rendered at
// read time so cached article data never serves a stale label.
type articleView struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
	Image    string `json:"image"`
	TimeAgo  string `json:"timeAgo"`
	Category string `json:"category"`
	PubDate  string `json:"pubDate"`
}

type articleDetailView struct {
	articleView
	FullContent string `json:"fullContent"`
	SourceName  string `json:"sourceName"`
}

type newsResponse struct {
	Success     bool          `json:"success"`
	Articles    []articleView `json:"articles"`
	LastUpdated string        `json:"lastUpdated,omitempty"`
	Cached      bool          `json:"cached"`
}

// getNewsHandler handles GET /news/{category}
func (h *Handler) getNewsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cat, err := models.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	// Only the parameterless default view goes through the cache; filtered
	// queries always hit the store.
	useCache := len(r.URL.Query()) == 0

	var (
		articles []models.Article
		cached   bool
	)

	if useCache {
		if payload, ok := h.cache.GetArticles(ctx, cat); ok {
			if err := json.Unmarshal(payload, &articles); err == nil {
				cached = true
			} else {
				logger.WithContext(ctx).Warn("Discarding undecodable cache entry", "category", cat, "error", err)
				articles = nil
			}
		}
	}

	if !cached {
		q, err := h.parseNewsQuery(r, cat)
		if err != nil {
			h.writeErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}

		articles, err = h.store.QueryArticles(ctx, q)
		if err != nil {
			logger.WithContext(ctx).Error("Failed to query articles", "category", cat, "error", err)
			h.writeErrorResponse(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if useCache {
			if payload, err := json.Marshal(articles); err == nil {
				h.cache.SetArticles(ctx, cat, payload)
			}
		}
	}

	now := time.Now().UTC()
	views := make([]articleView, 0, len(articles))
	var lastUpdated time.Time
	for _, a := range articles {
		views = append(views, articleView{
			ID:       a.ID,
			Title:    a.Title,
			Summary:  a.Summary,
			URL:      a.URL,
			Image:    a.ImageURL,
			TimeAgo:  models.TimeAgoLabel(a.PubDate, now),
			Category: string(a.Category),
			PubDate:  a.PubDate.UTC().Format(time.RFC3339),
		})
		if a.PubDate.After(lastUpdated) {
			lastUpdated = a.PubDate
		}
	}

	response := newsResponse{
		Success:  true,
		Articles: views,
		Cached:   cached,
	}
	if !lastUpdated.IsZero() {
		response.LastUpdated = lastUpdated.UTC().Format(time.RFC3339)
	}

	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(h.cacheMaxAge.Seconds())))
	h.writeJSONResponse(w, http.StatusOK, response)
}

// getArticleHandler handles GET /news/article/{id}
func (h *Handler) getArticleHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	articleID := chi.URLParam(r, "id")
	if articleID == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "article id is required")
		return
	}

	article, err := h.store.GetArticle(ctx, articleID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			h.writeErrorResponse(w, http.StatusNotFound, "article not found")
			return
		}
		logger.WithContext(ctx).Error("Failed to get article", "error", err, "article_id", articleID)
		h.writeErrorResponse(w, http.StatusInternalServerError, "internal server error")
		return
	}

	now := time.Now().UTC()
	response := map[string]interface{}{
		"success": true,
		"article": articleDetailView{
			articleView: articleView{
				ID:       article.ID,
				Title:    article.Title,
				Summary:  article.Summary,
				URL:      article.URL,
				Image:    article.ImageURL,
				TimeAgo:  models.TimeAgoLabel(article.PubDate, now),
				Category: string(article.Category),
				PubDate:  article.PubDate.UTC().Format(time.RFC3339),
			},
			FullContent: article.FullContent,
			SourceName:  article.SourceName,
		},
	}

	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(h.cacheMaxAge.Seconds())))
	h.writeJSONResponse(w, http.StatusOK, response)
}

// ingestRunHandler handles POST /ingest/run
func (h *Handler) ingestRunHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := h.trigger.RunOnce(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrAlreadyRunning) {
			h.writeErrorResponse(w, http.StatusConflict, "ingestion run already in progress")
			return
		}
		logger.WithContext(ctx).Error("Manual ingestion run failed", "error", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, "ingestion run failed")
		return
	}

	response := map[string]interface{}{
		"success":      true,
		"runId":        summary.RunID,
		"totalUpdated": summary.TotalPersisted,
		"failedFeeds":  summary.FailedFeeds,
		"timestamp":    time.Now().UTC(),
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// healthHandler provides basic health check
func (h *Handler) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// readinessHandler checks if the application is ready to serve traffic
func (h *Handler) readinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := map[string]string{
		"store": "ok",
	}

	statusCode := http.StatusOK
	status := "ready"

	if err := h.store.Health(ctx); err != nil {
		checks["store"] = "error: " + err.Error()
		statusCode = http.StatusServiceUnavailable
		status = apperrors.ErrServiceUnavailable.Error()
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	}

	h.writeJSONResponse(w, statusCode, response)
}

// livenessHandler checks if the application is alive
func (h *Handler) livenessHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// versionHandler returns version information
func (h *Handler) versionHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"version":    h.version,
		"build_time": h.buildTime,
		"git_commit": h.gitCommit,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

func (h *Handler) methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	h.writeErrorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
}

// parseNewsQuery parses query parameters into an ArticleQuery
func (h *Handler) parseNewsQuery(r *http.Request, cat models.Category) (models.ArticleQuery, error) {
	q := models.ArticleQuery{Category: cat, Limit: defaultNewsLimit}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return q, fmt.Errorf("%w: invalid limit %q", apperrors.ErrInvalidInput, limitStr)
		}
		if limit < 1 || limit > 200 {
			return q, fmt.Errorf("%w: limit must be between 1 and 200", apperrors.ErrInvalidInput)
		}
		q.Limit = limit
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return q, fmt.Errorf("%w: invalid offset %q", apperrors.ErrInvalidInput, offsetStr)
		}
		if offset < 0 {
			return q, fmt.Errorf("%w: offset must be non-negative", apperrors.ErrInvalidInput)
		}
		q.Offset = offset
	}

	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			return q, fmt.Errorf("%w: invalid since format %q", apperrors.ErrInvalidInput, sinceStr)
		}
		q.Since = since
	}

	return q, nil
}

// writeJSONResponse writes a JSON response
func (h *Handler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeErrorResponse writes a standardized error response
func (h *Handler) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	h.writeJSONResponse(w, statusCode, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
