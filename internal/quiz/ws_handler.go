package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/smart-quiz/internal/server"
	httperrors "github.com/gokatarajesh/smart-quiz/pkg/http/errors"
	ws "github.com/gokatarajesh/smart-quiz/pkg/http/ws"
)

// WSHandler streams session events and accepts answers over a WebSocket.
type WSHandler struct {
	machine *Machine
	hub     *ws.Hub
	logger  zerolog.Logger
}

func NewWSHandler(machine *Machine, hub *ws.Hub, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		machine: machine,
		hub:     hub,
		logger:  logger.With().Str("component", "session_ws").Logger(),
	}
}

// Register mounts the WebSocket endpoint on mux.
func (h *WSHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/session", h.HandleWebSocket)
}

// HandleWebSocket upgrades the request and serves the connection until it closes.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := server.WSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	id := uuid.New()
	wsConn := ws.NewConnection(conn, h.logger)
	h.hub.RegisterConnection(id, wsConn)
	go wsConn.WritePump()

	if view, err := h.machine.Current(); err == nil {
		_ = h.send(id, ws.TypeSessionState, view)
	}

	wsConn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(context.Background(), id, msg)
	})

	h.hub.UnregisterConnection(id)
}

func (h *WSHandler) handleMessage(ctx context.Context, id uuid.UUID, msg ws.Message) error {
	switch msg.Type {
	case ws.TypePing:
		return h.send(id, ws.TypePong, struct{}{})
	case ws.TypeRequestState:
		return h.handleRequestState(id)
	case ws.TypeSubmitAnswer:
		return h.handleSubmitAnswer(ctx, id, msg.Payload)
	default:
		return h.sendError(id, httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

func (h *WSHandler) handleRequestState(id uuid.UUID) error {
	view, err := h.machine.Current()
	if err != nil {
		return h.sendError(id, httperrors.ErrCodeNoActiveSession, err.Error())
	}
	return h.send(id, ws.TypeSessionState, view)
}

func (h *WSHandler) handleSubmitAnswer(ctx context.Context, id uuid.UUID, payload json.RawMessage) error {
	var req ws.SubmitAnswerPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.Answer == "" {
		return h.sendError(id, httperrors.ErrCodeInvalidPayload, "Invalid submit_answer payload")
	}
	view, err := h.machine.Answer(ctx, req.Answer)
	if err != nil {
		code := httperrors.ErrCodeInternalError
		switch {
		case errors.Is(err, ErrNoActiveSession):
			code = httperrors.ErrCodeNoActiveSession
		case errors.Is(err, ErrUnknownOption):
			code = httperrors.ErrCodeUnknownOption
		}
		return h.sendError(id, code, err.Error())
	}
	return h.send(id, ws.TypeSessionState, view)
}

func (h *WSHandler) send(id uuid.UUID, msgType string, payload any) error {
	msg, err := ws.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	return h.hub.SendTo(id, msg)
}

func (h *WSHandler) sendError(id uuid.UUID, code, message string) error {
	return h.send(id, ws.TypeError, ws.ErrorPayload{Code: code, Message: message})
}
