// Package handler exposes the search and facet endpoints.
package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/elchin-rustamov/courtsearch/internal/analytics"
	"github.com/elchin-rustamov/courtsearch/internal/document"
	"github.com/elchin-rustamov/courtsearch/internal/indexer/facets"
	"github.com/elchin-rustamov/courtsearch/internal/searcher"
	"github.com/elchin-rustamov/courtsearch/internal/searcher/cache"
	apperrors "github.com/elchin-rustamov/courtsearch/pkg/errors"
	"github.com/elchin-rustamov/courtsearch/pkg/logger"
	"github.com/elchin-rustamov/courtsearch/pkg/metrics"
)

// EventTracker receives search usage events.
type EventTracker interface {
	Track(event interface{})
}

type Handler struct {
	engine  *searcher.Engine
	cache   *cache.QueryCache
	facets  *facets.Cache
	tracker EventTracker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(engine *searcher.Engine, queryCache *cache.QueryCache, fc *facets.Cache, tracker EventTracker, m *metrics.Metrics) *Handler {
	return &Handler{
		engine:  engine,
		cache:   queryCache,
		facets:  fc,
		tracker: tracker,
		metrics: m,
		logger:  slog.Default().With("component", "search-handler"),
	}
}

// Search handles GET /api/v1/search. The q parameter is the semantic query;
// every facet field name is accepted as a filter parameter. A request with
// filters but no q browses by metadata.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := searcher.Query{
		Text:    r.URL.Query().Get("q"),
		Filters: parseFilters(r),
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		query.Limit = parsed
	}

	var (
		result   *searcher.Result
		err      error
		cacheHit bool
	)
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, query, func() (*searcher.Result, error) {
			return h.engine.Search(ctx, query)
		})
	} else {
		result, err = h.engine.Search(ctx, query)
	}
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("search failed", "query", query.Text, "error", err)
		h.writeError(w, statusCode, err.Error())
		return
	}

	latency := time.Since(start)
	h.observe(latency, cacheHit)
	log.Info("search completed",
		"query", query.Text,
		"filters", len(query.Filters),
		"outcome", result.Outcome,
		"returned", len(result.Hits),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if h.tracker != nil {
		h.tracker.Track(analytics.SearchEvent{
			Query:     query.Text,
			Filters:   query.Filters,
			Outcome:   result.Outcome,
			TotalHits: result.Total,
			LatencyMs: latency.Milliseconds(),
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
		})
	}

	h.writeJSON(w, http.StatusOK, result)
}

// Facets handles GET /api/v1/facets: the distinct known values per
// filterable field.
func (h *Handler) Facets(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.facets.Snapshot())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func parseFilters(r *http.Request) map[string]string {
	filters := make(map[string]string)
	for _, field := range document.FacetFields {
		if value := r.URL.Query().Get(field); value != "" {
			filters[field] = value
		}
	}
	return filters
}

func (h *Handler) observe(latency time.Duration, cacheHit bool) {
	if h.metrics == nil {
		return
	}
	status := "miss"
	if cacheHit {
		status = "hit"
		h.metrics.CacheHitsTotal.Inc()
	} else {
		h.metrics.CacheMissesTotal.Inc()
	}
	h.metrics.SearchLatency.WithLabelValues(status).Observe(latency.Seconds())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
