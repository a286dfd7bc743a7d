// Package page 提供服务端渲染的聊天页面。
package page

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/gemini-chat/backend/internal/middleware"
	modelchat "github.com/zhouzirui/gemini-chat/backend/internal/model/chat"
	"github.com/zhouzirui/gemini-chat/backend/internal/render"
	chatservice "github.com/zhouzirui/gemini-chat/backend/internal/service/chat"
	"github.com/zhouzirui/gemini-chat/backend/pkg/utils"
)

//go:embed templates/*.html
var templateFS embed.FS

var tmpl = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Handler 渲染聊天页面并处理表单提交
type Handler struct {
	registry    *chatservice.Registry
	title       string
	placeholder string
}

// New 创建页面处理器
func New(registry *chatservice.Registry, title, placeholder string) *Handler {
	return &Handler{
		registry:    registry,
		title:       title,
		placeholder: placeholder,
	}
}

// RegisterRoutes 注册页面路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Post("/", h.handleSubmit)
}

type turnView struct {
	Role modelchat.Role
	HTML template.HTML
}

type pageData struct {
	Title       string
	Placeholder string
	Turns       []turnView
	Warnings    []string
	Error       string
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	m := h.registry.Get(r.Context(), middleware.SessionID(r.Context()))
	h.render(w, http.StatusOK, m.Snapshot(), "")
}

// handleSubmit 处理表单提交：成功后 303 重定向回页面，失败时直接渲染错误横幅
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	m := h.registry.Get(r.Context(), middleware.SessionID(r.Context()))
	if _, err := m.Submit(r.Context(), r.PostForm.Get("message")); err != nil {
		h.render(w, utils.StatusForError(err), m.Snapshot(), chatservice.Notice(err))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, status int, view chatservice.Transcript, notice string) {
	data := pageData{
		Title:       h.title,
		Placeholder: h.placeholder,
		Turns:       make([]turnView, 0, len(view.Turns)),
		Warnings:    view.Warnings,
		Error:       notice,
	}
	for _, turn := range view.Turns {
		data.Turns = append(data.Turns, turnView{Role: turn.Role, HTML: render.Markdown(turn.Text)})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		log.Error().Err(err).Msg("failed to render chat page")
	}
}
