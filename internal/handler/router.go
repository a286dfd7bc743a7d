package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/gemini-chat/backend/internal/config"
	"github.com/zhouzirui/gemini-chat/backend/internal/handler/chat"
	"github.com/zhouzirui/gemini-chat/backend/internal/handler/page"
	"github.com/zhouzirui/gemini-chat/backend/internal/handler/stream"
	"github.com/zhouzirui/gemini-chat/backend/internal/handler/ws"
	"github.com/zhouzirui/gemini-chat/backend/internal/middleware"
	chatservice "github.com/zhouzirui/gemini-chat/backend/internal/service/chat"
)

// NewRouter wires HTTP routes to the session registry.
func NewRouter(registry *chatservice.Registry, chatCfg config.ChatConfig, sessionCfg config.SessionConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(sr chi.Router) {
		sr.Use(middleware.Session(sessionCfg.CookieName))

		page.New(registry, chatCfg.Title, chatCfg.Placeholder).RegisterRoutes(sr)

		sr.Route("/api", func(api chi.Router) {
			chat.New(registry, sessionCfg.CookieName).RegisterRoutes(api)
			stream.New(registry).RegisterRoutes(api)
			ws.New(registry).RegisterRoutes(api)
		})
	})

	return r
}
