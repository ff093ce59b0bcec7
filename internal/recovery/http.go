package recovery

import (
	"net/http"

	"github.com/gokatarajesh/smart-quiz/internal/quiz"
	httperrors "github.com/gokatarajesh/smart-quiz/pkg/http/errors"
)

// HTTPHandler exposes the resume prompt and the resume command.
type HTTPHandler struct {
	ctrl *Controller
}

func NewHTTPHandler(ctrl *Controller) *HTTPHandler {
	return &HTTPHandler{ctrl: ctrl}
}

// Register mounts the handler routes on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/session/resumable", h.Resumable)
	mux.HandleFunc("POST /v1/session/resume", h.Resume)
}

// Resumable handles GET /v1/session/resumable.
func (h *HTTPHandler) Resumable(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.ctrl.Check(r.Context())
	if !ok {
		httperrors.RespondJSON(w, http.StatusOK, map[string]any{"resumable": false})
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, map[string]any{
		"resumable": true,
		"session":   summary,
	})
}

// Resume handles POST /v1/session/resume.
func (h *HTTPHandler) Resume(w http.ResponseWriter, r *http.Request) {
	view, err := h.ctrl.Resume(r.Context())
	if err != nil {
		quiz.RespondError(w, err)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, view)
}
