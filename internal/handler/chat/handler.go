package chat

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/gemini-chat/backend/internal/middleware"
	chatservice "github.com/zhouzirui/gemini-chat/backend/internal/service/chat"
	"github.com/zhouzirui/gemini-chat/backend/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	registry   *chatservice.Registry
	cookieName string
}

// New 创建聊天处理器
func New(registry *chatservice.Registry, cookieName string) *Handler {
	return &Handler{
		registry:   registry,
		cookieName: cookieName,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleNewSession)
	r.Get("/transcript", h.handleTranscript)
	r.Post("/messages", h.handleSubmit)
}

type submitResponse struct {
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
	Kind  string `json:"kind,omitempty"`
	chatservice.Transcript
}

// handleNewSession 签发新的会话，旧会话留给空闲清理
func (h *Handler) handleNewSession(w http.ResponseWriter, r *http.Request) {
	id := middleware.IssueSession(w, h.cookieName)
	w.Header().Set(middleware.SessionHeader, id)
	utils.RespondJSON(w, http.StatusCreated, h.registry.Get(r.Context(), id).Snapshot())
}

// handleTranscript 返回当前会话的展示视图
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	m := h.registry.Get(r.Context(), middleware.SessionID(r.Context()))
	utils.RespondJSON(w, http.StatusOK, m.Snapshot())
}

// handleSubmit 提交一条用户消息并返回回复
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m := h.registry.Get(r.Context(), middleware.SessionID(r.Context()))
	reply, err := m.Submit(r.Context(), payload.Text)
	if err != nil {
		status := utils.StatusForError(err)
		if status >= http.StatusInternalServerError {
			log.Warn().Err(err).Str("session", m.ID()).Int("status", status).Msg("submit failed")
		}
		utils.RespondJSON(w, status, submitResponse{
			Error:      chatservice.Notice(err),
			Kind:       utils.ErrorKind(err),
			Transcript: m.Snapshot(),
		})
		return
	}

	utils.RespondJSON(w, http.StatusOK, submitResponse{
		Reply:      chatservice.FormatReply(reply),
		Transcript: m.Snapshot(),
	})
}
