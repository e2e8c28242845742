// Package handler exposes document lifecycle endpoints: ingest, delete,
// reindex, and index statistics.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/elchin-rustamov/courtsearch/internal/indexer"
	"github.com/elchin-rustamov/courtsearch/internal/indexer/index"
	"github.com/elchin-rustamov/courtsearch/internal/ingestion"
	"github.com/elchin-rustamov/courtsearch/internal/ingestion/validator"
	apperrors "github.com/elchin-rustamov/courtsearch/pkg/errors"
	"github.com/elchin-rustamov/courtsearch/pkg/logger"
)

// CacheInvalidator drops cached search results after the index changes.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

type Handler struct {
	pipeline *indexer.Pipeline
	index    *index.VectorIndex
	cache    CacheInvalidator
	logger   *slog.Logger
}

func New(pipeline *indexer.Pipeline, idx *index.VectorIndex, cache CacheInvalidator) *Handler {
	return &Handler{
		pipeline: pipeline,
		index:    idx,
		cache:    cache,
		logger:   slog.Default().With("component", "ingestion-handler"),
	}
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req ingestion.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateIngestRequest(&req); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.pipeline.Ingest(ctx, req.DocumentID, req.Filename, req.Text)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("ingestion failed", "filename", req.Filename, "error", err)
		h.writeError(w, statusCode, "ingestion failed")
		return
	}
	h.invalidateCache(ctx)

	status := http.StatusCreated
	if report.SkippedChunks > 0 {
		// Degraded but usable; the report carries the details.
		status = http.StatusAccepted
	}
	h.writeJSON(w, status, report)
}

// Get returns one document. The durable copy carries the full text; without
// a store the response falls back to the indexed metadata.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID := r.PathValue("id")
	if docID == "" {
		h.writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	doc, err := h.pipeline.Document(ctx, docID)
	if err != nil {
		logger.FromContext(ctx).Error("document lookup failed", "doc_id", docID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "document lookup failed")
		return
	}
	if doc != nil {
		h.writeJSON(w, http.StatusOK, map[string]any{
			"document_id": doc.ID,
			"filename":    doc.Filename,
			"metadata":    doc.Metadata,
			"ingested_at": doc.IngestedAt,
			"text":        doc.Text,
		})
		return
	}

	meta, ok := h.index.Metadata(docID)
	if !ok {
		h.writeError(w, http.StatusNotFound, "document not found: "+docID)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"document_id": docID,
		"metadata":    meta,
	})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID := r.PathValue("id")
	if docID == "" {
		h.writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	if err := h.pipeline.Delete(ctx, docID); err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		if !errors.Is(err, apperrors.ErrDocumentNotFound) {
			logger.FromContext(ctx).Error("delete failed", "doc_id", docID, "error", err)
		}
		h.writeError(w, statusCode, err.Error())
		return
	}
	h.invalidateCache(ctx)
	h.writeJSON(w, http.StatusOK, map[string]string{"deleted": docID})
}

func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	count, err := h.pipeline.Reindex(ctx)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		logger.FromContext(ctx).Error("reindex failed", "error", err)
		h.writeError(w, statusCode, "reindex failed")
		return
	}
	h.invalidateCache(ctx)
	h.writeJSON(w, http.StatusOK, map[string]int{"reindexed_documents": count})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]int{
		"documents": h.index.DocCount(),
		"chunks":    h.index.ChunkCount(),
	}
	if stored, err := h.pipeline.StoredCount(r.Context()); err == nil {
		stats["documents_stored"] = stored
	} else if !errors.Is(err, apperrors.ErrStoreUnavailable) {
		h.logger.Warn("stored document count failed", "error", err)
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) invalidateCache(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx); err != nil {
		h.logger.Warn("cache invalidation failed", "error", err)
	}
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
