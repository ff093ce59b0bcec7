package profile

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	httperrors "github.com/gokatarajesh/smart-quiz/pkg/http/errors"
)

type sessionQuitter interface {
	Close(ctx context.Context)
}

// HTTPHandler exposes profile and preference endpoints.
type HTTPHandler struct {
	svc     *Service
	session sessionQuitter
}

// NewHTTPHandler builds the handler. session may be nil; when set, logout also detaches the
// running quiz.
func NewHTTPHandler(svc *Service, session sessionQuitter) *HTTPHandler {
	return &HTTPHandler{svc: svc, session: session}
}

// Register mounts the handler routes on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/profile", h.Get)
	mux.HandleFunc("PUT /v1/profile", h.SetUser)
	mux.HandleFunc("DELETE /v1/profile", h.Logout)
	mux.HandleFunc("PUT /v1/profile/dark-mode", h.SetDarkMode)
	mux.HandleFunc("GET /v1/settings/last", h.LastSettings)
}

// Get handles GET /v1/profile.
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	httperrors.RespondJSON(w, http.StatusOK, h.svc.Get(r.Context()))
}

// SetUser handles PUT /v1/profile.
func (h *HTTPHandler) SetUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User string `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid request body")
		return
	}
	if _, err := h.svc.SetUser(r.Context(), req.User); err != nil {
		if errors.Is(err, ErrEmptyName) {
			httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, err.Error(), "user")
			return
		}
		httperrors.RespondInternalError(w, "failed to save profile")
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, h.svc.Get(r.Context()))
}

// Logout handles DELETE /v1/profile.
func (h *HTTPHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.session != nil {
		h.session.Close(r.Context())
	}
	h.svc.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// SetDarkMode handles PUT /v1/profile/dark-mode.
func (h *HTTPHandler) SetDarkMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid request body")
		return
	}
	if req.Enabled == nil {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "enabled is required", "enabled")
		return
	}
	h.svc.SetDarkMode(r.Context(), *req.Enabled)
	httperrors.RespondJSON(w, http.StatusOK, h.svc.Get(r.Context()))
}

// LastSettings handles GET /v1/settings/last.
func (h *HTTPHandler) LastSettings(w http.ResponseWriter, r *http.Request) {
	settings, ok := h.svc.LastSettings(r.Context())
	if !ok {
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "no previous settings")
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, settings)
}
