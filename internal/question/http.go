package question

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	httperrors "github.com/gokatarajesh/smart-quiz/pkg/http/errors"
)

// HTTPHandler exposes the custom-question list and the category table.
type HTTPHandler struct {
	repo   *CustomRepository
	logger zerolog.Logger
}

func NewHTTPHandler(repo *CustomRepository, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		repo:   repo,
		logger: logger.With().Str("component", "custom_questions_http").Logger(),
	}
}

// Register mounts the handler routes on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/custom-questions", h.List)
	mux.HandleFunc("POST /v1/custom-questions", h.Add)
	mux.HandleFunc("DELETE /v1/custom-questions/{id}", h.Delete)
	mux.HandleFunc("GET /v1/categories", h.Categories)
}

// List handles GET /v1/custom-questions.
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	list := h.repo.List(r.Context())
	httperrors.RespondJSON(w, http.StatusOK, map[string]any{
		"questions": list,
		"count":     len(list),
	})
}

// Add handles POST /v1/custom-questions.
func (h *HTTPHandler) Add(w http.ResponseWriter, r *http.Request) {
	var in CustomInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid request body")
		return
	}
	q, err := h.repo.Add(r.Context(), in)
	if err != nil {
		if errors.Is(err, ErrInvalidCustomQuestion) {
			httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, ErrInvalidCustomQuestion.Error(), "question")
			return
		}
		h.logger.Error().Err(err).Msg("add custom question failed")
		httperrors.RespondInternalError(w, "failed to add question")
		return
	}
	h.logger.Info().Str("id", q.ID).Msg("custom question added")
	httperrors.RespondJSON(w, http.StatusCreated, q)
}

// Delete handles DELETE /v1/custom-questions/{id}.
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrCustomNotFound) {
			httperrors.RespondNotFound(w, httperrors.ErrCodeQuestionNotFound, err.Error())
			return
		}
		httperrors.RespondInternalError(w, "failed to delete question")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Categories handles GET /v1/categories.
func (h *HTTPHandler) Categories(w http.ResponseWriter, _ *http.Request) {
	httperrors.RespondJSON(w, http.StatusOK, map[string]any{"categories": Categories()})
}
