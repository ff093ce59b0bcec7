package quiz

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/smart-quiz/internal/question"
	httperrors "github.com/gokatarajesh/smart-quiz/pkg/http/errors"
)

// StartRequest is the body of POST /v1/session/start.
type StartRequest struct {
	Category             string  `json:"category" validate:"omitempty,numeric"`
	Difficulty           string  `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	QuestionCount        int     `json:"questionCount" validate:"gte=0,lte=50"`
	SecondsPerQuestion   int     `json:"secondsPerQuestion" validate:"gte=0,lte=300"`
	NegativeMarkingValue float64 `json:"negativeMarkingValue" validate:"gte=-10,lte=10"`
}

func (r StartRequest) settings() Settings {
	return Settings{
		Category:             r.Category,
		Difficulty:           r.Difficulty,
		QuestionCount:        r.QuestionCount,
		SecondsPerQuestion:   r.SecondsPerQuestion,
		NegativeMarkingValue: r.NegativeMarkingValue,
	}
}

// AnswerRequest is the body of POST /v1/session/answer.
type AnswerRequest struct {
	Answer string `json:"answer" validate:"required"`
}

// HTTPHandler exposes the session commands.
type HTTPHandler struct {
	machine  *Machine
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewHTTPHandler(machine *Machine, logger zerolog.Logger) *HTTPHandler {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &HTTPHandler{
		machine:  machine,
		validate: v,
		logger:   logger.With().Str("component", "session_http").Logger(),
	}
}

// Register mounts the handler routes on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/session", h.Current)
	mux.HandleFunc("GET /v1/session/result", h.Result)
	mux.HandleFunc("POST /v1/session/start", h.Start)
	mux.HandleFunc("POST /v1/session/answer", h.Answer)
	mux.HandleFunc("POST /v1/session/next", h.Next)
	mux.HandleFunc("POST /v1/session/prev", h.Prev)
	mux.HandleFunc("POST /v1/session/quit", h.Quit)
}

// Start handles POST /v1/session/start.
func (h *HTTPHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.machine.StartWith(r.Context(), req.settings())
	if err != nil {
		h.logger.Warn().Err(err).Msg("start quiz failed")
		RespondError(w, err)
		return
	}
	httperrors.RespondJSON(w, http.StatusCreated, view)
}

// Answer handles POST /v1/session/answer.
func (h *HTTPHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.machine.Answer(r.Context(), req.Answer)
	if err != nil {
		RespondError(w, err)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, view)
}

// Next handles POST /v1/session/next.
func (h *HTTPHandler) Next(w http.ResponseWriter, r *http.Request) {
	view, err := h.machine.Advance(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	if view.Phase == PhaseFinished {
		res, err := h.machine.Result()
		if err == nil {
			httperrors.RespondJSON(w, http.StatusOK, map[string]any{"view": view, "result": res})
			return
		}
	}
	httperrors.RespondJSON(w, http.StatusOK, map[string]any{"view": view})
}

// Prev handles POST /v1/session/prev.
func (h *HTTPHandler) Prev(w http.ResponseWriter, r *http.Request) {
	view, err := h.machine.Retreat(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, view)
}

// Quit handles POST /v1/session/quit.
func (h *HTTPHandler) Quit(w http.ResponseWriter, r *http.Request) {
	if err := h.machine.Quit(r.Context()); err != nil {
		RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Current handles GET /v1/session.
func (h *HTTPHandler) Current(w http.ResponseWriter, _ *http.Request) {
	view, err := h.machine.Current()
	if err != nil {
		RespondError(w, err)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, view)
}

// Result handles GET /v1/session/result.
func (h *HTTPHandler) Result(w http.ResponseWriter, _ *http.Request) {
	res, err := h.machine.Result()
	if err != nil {
		RespondError(w, err)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, res)
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, fe.Field()+" failed "+fe.Tag(), fe.Field())
			return false
		}
		httperrors.RespondBadRequest(w, httperrors.ErrCodeValidationFailed, err.Error())
		return false
	}
	return true
}

// RespondError maps session and question errors onto HTTP responses.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrStartInProgress):
		httperrors.RespondConflict(w, httperrors.ErrCodeStartInProgress, err.Error())
	case errors.Is(err, ErrNoActiveSession):
		httperrors.RespondConflict(w, httperrors.ErrCodeNoActiveSession, err.Error())
	case errors.Is(err, ErrNotAnswered):
		httperrors.RespondConflict(w, httperrors.ErrCodeNotAnswered, err.Error())
	case errors.Is(err, ErrUnknownOption):
		httperrors.RespondValidationError(w, httperrors.ErrCodeUnknownOption, err.Error(), "answer")
	case errors.Is(err, ErrUserRequired):
		httperrors.RespondBadRequest(w, httperrors.ErrCodeUserRequired, err.Error())
	case errors.Is(err, ErrNoQuestionsAvailable):
		httperrors.RespondNotFound(w, httperrors.ErrCodeNoQuestions, err.Error())
	case errors.Is(err, question.ErrNoResults):
		httperrors.RespondNotFound(w, httperrors.ErrCodeNoQuestions, question.ErrNoResults.Error())
	case errors.Is(err, question.ErrFetchFailed):
		httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeUpstreamError, question.ErrFetchFailed.Error())
	case errors.Is(err, ErrNothingToResume):
		httperrors.RespondNotFound(w, httperrors.ErrCodeNothingToResume, err.Error())
	case errors.Is(err, ErrNoResult):
		httperrors.RespondNotFound(w, httperrors.ErrCodeNoResult, err.Error())
	default:
		httperrors.RespondInternalError(w, "session operation failed")
	}
}
