package stream

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/gemini-chat/backend/internal/middleware"
	chatservice "github.com/zhouzirui/gemini-chat/backend/internal/service/chat"
	"github.com/zhouzirui/gemini-chat/backend/pkg/utils"
)

// Handler delivers one submission's progress as Server-Sent Events.
type Handler struct {
	registry *chatservice.Registry
}

// New creates a new stream handler
func New(registry *chatservice.Registry) *Handler {
	return &Handler{registry: registry}
}

// RegisterRoutes registers the stream endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream", h.handleStream)
}

// ErrorEvent is the payload of an "error" event.
type ErrorEvent struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

// EndEvent is the payload of the closing "end" event.
type EndEvent struct {
	SessionID string `json:"sessionId"`
	Turns     int    `json:"turns"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	userMessage := r.URL.Query().Get("message")
	if strings.TrimSpace(userMessage) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	m := h.registry.Get(ctx, middleware.SessionID(ctx))

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	turns, err := m.SubmitTurns(ctx, userMessage)
	for _, turn := range turns {
		utils.SendSSEEvent(w, flusher, "turn", turn)
	}

	if err != nil {
		log.Warn().Err(err).Str("session", m.ID()).Msg("stream submission failed")
		utils.SendSSEEvent(w, flusher, "error", ErrorEvent{
			Message: chatservice.Notice(err),
			Kind:    utils.ErrorKind(err),
		})
	}

	utils.SendSSEEvent(w, flusher, "end", EndEvent{SessionID: m.ID(), Turns: len(m.Turns())})
}
