package dialogue

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/elchin-rustamov/courtsearch/internal/searcher"
	"github.com/elchin-rustamov/courtsearch/internal/searcher/cache"
	apperrors "github.com/elchin-rustamov/courtsearch/pkg/errors"
	"github.com/elchin-rustamov/courtsearch/pkg/logger"
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID  string            `json:"session_id"`
	State      string            `json:"state"`
	Message    string            `json:"message"`
	Options    []string          `json:"options,omitempty"`
	BestEffort bool              `json:"best_effort,omitempty"`
	Filters    map[string]string `json:"filters,omitempty"`
	Results    *searcher.Result  `json:"results,omitempty"`
}

// Handler exposes the conversational endpoint. A turn either comes back as
// a clarification question or as executed search results.
type Handler struct {
	controller *Controller
	engine     *searcher.Engine
	cache      *cache.QueryCache
	logger     *slog.Logger
}

func NewHandler(controller *Controller, engine *searcher.Engine, queryCache *cache.QueryCache) *Handler {
	return &Handler{
		controller: controller,
		engine:     engine,
		cache:      queryCache,
		logger:     slog.Default().With("component", "chat-handler"),
	}
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		h.writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	turn := h.controller.Handle(req.SessionID, req.Message)
	if turn.State == StateAwaitingClarification {
		h.writeJSON(w, http.StatusOK, chatResponse{
			SessionID: turn.SessionID,
			State:     turn.State,
			Message:   turn.Message,
			Options:   turn.Options,
		})
		return
	}

	var (
		result *searcher.Result
		err    error
	)
	if h.cache != nil {
		result, _, err = h.cache.GetOrCompute(ctx, *turn.Query, func() (*searcher.Result, error) {
			return h.engine.Search(ctx, *turn.Query)
		})
	} else {
		result, err = h.engine.Search(ctx, *turn.Query)
	}
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("chat search failed", "session_id", turn.SessionID, "error", err)
		h.writeError(w, statusCode, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, chatResponse{
		SessionID:  turn.SessionID,
		State:      turn.State,
		Message:    resultMessage(result, turn.BestEffort),
		BestEffort: turn.BestEffort,
		Filters:    turn.Query.Filters,
		Results:    result,
	})
}

func resultMessage(result *searcher.Result, bestEffort bool) string {
	if result.Outcome == searcher.OutcomeNoRelevantResults {
		return "Sorğunuza uyğun nəticə tapılmadı."
	}
	msg := fmt.Sprintf("%d nəticə tapıldı.", result.Total)
	if bestEffort {
		msg += " Dəqiqləşdirmə alınmadığı üçün ən uyğun variant seçildi."
	}
	return msg
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
