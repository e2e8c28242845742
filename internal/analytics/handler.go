package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// HistoryProvider serves persisted stats snapshots, newest first.
type HistoryProvider interface {
	ListSnapshots(ctx context.Context, limit int) ([]AggregatedStats, error)
}

type Handler struct {
	aggregator *Aggregator
	history    HistoryProvider
	logger     *slog.Logger
}

// NewHandler creates the analytics HTTP handler. history may be nil when no
// durable snapshot store is configured.
func NewHandler(aggregator *Aggregator, history HistoryProvider) *Handler {
	return &Handler{
		aggregator: aggregator,
		history:    history,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.aggregator.Stats())
}

// History returns up to ?limit persisted snapshots (default 24).
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		http.Error(w, `{"error":"snapshot store not configured"}`, http.StatusNotImplemented)
		return
	}

	limit := 24
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			http.Error(w, `{"error":"limit must be a positive integer up to 1000"}`, http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	snapshots, err := h.history.ListSnapshots(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list analytics snapshots", "error", err)
		http.Error(w, `{"error":"failed to load snapshots"}`, http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"snapshots": snapshots})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
