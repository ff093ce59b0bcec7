package leaderboard

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	httperrors "github.com/gokatarajesh/smart-quiz/pkg/http/errors"
)

// HTTPHandler exposes REST endpoints for leaderboard queries.
type HTTPHandler struct {
	svc    *Service
	logger zerolog.Logger
}

// NewHTTPHandler constructs a leaderboard HTTP handler.
func NewHTTPHandler(svc *Service, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		logger: logger.With().Str("component", "leaderboard_http").Logger(),
	}
}

// Register mounts the handler routes on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/leaderboard", h.HandleGet)
	mux.HandleFunc("DELETE /v1/leaderboard", h.HandleClear)
}

// HandleGet responds with the current board.
// Route: GET /v1/leaderboard?limit=10
func (h *HTTPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	top := h.svc.Top(r.Context(), limit)
	entries := toWSEntries(top)

	httperrors.RespondJSON(w, http.StatusOK, map[string]any{
		"top":         entries,
		"count":       len(entries),
		"retrievedAt": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleClear empties the board.
// Route: DELETE /v1/leaderboard
func (h *HTTPHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	h.svc.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
