package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/gemini-chat/backend/internal/config"
	"github.com/zhouzirui/gemini-chat/backend/internal/middleware"
	chatservice "github.com/zhouzirui/gemini-chat/backend/internal/service/chat"
)

type nopConnector struct{}

func (nopConnector) Connect(context.Context, chatservice.SessionConfig) (chatservice.RemoteSession, error) {
	return nil, context.Canceled
}

func newTestRouter() http.Handler {
	registry := chatservice.NewRegistry(nopConnector{}, chatservice.SessionConfig{})
	return NewRouter(registry, config.DefaultChatConfig(), config.SessionConfig{CookieName: "chat_session"})
}

func TestHealthz(t *testing.T) {
	resp := httptest.NewRecorder()
	newTestRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "ok", resp.Body.String())
	require.Empty(t, resp.Result().Cookies())
}

func TestRoutesIssueSessionCookie(t *testing.T) {
	router := newTestRouter()

	for _, path := range []string{"/", "/api/transcript"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))

		require.Equal(t, http.StatusOK, resp.Code, path)
		require.NotEmpty(t, resp.Header().Get(middleware.SessionHeader), path)
		cookies := resp.Result().Cookies()
		require.Len(t, cookies, 1, path)
		require.Equal(t, "chat_session", cookies[0].Name)
	}
}

func TestPreflightHandledByCORS(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/messages", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp := httptest.NewRecorder()
	newTestRouter().ServeHTTP(resp, req)

	require.Equal(t, http.StatusNoContent, resp.Code)
}
