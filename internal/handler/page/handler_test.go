package page

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/gemini-chat/backend/internal/middleware"
	modelchat "github.com/zhouzirui/gemini-chat/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/gemini-chat/backend/internal/service/chat"
)

type markdownRemote struct{}

func (markdownRemote) Send(context.Context, string) (string, error) {
	return "\n**4**\n", nil
}

type markdownConnector struct{}

func (markdownConnector) Connect(context.Context, chatservice.SessionConfig) (chatservice.RemoteSession, error) {
	return markdownRemote{}, nil
}

type staticArchive struct {
	entries []modelchat.Entry
}

func (a *staticArchive) Append(context.Context, string, modelchat.Turn) error { return nil }

func (a *staticArchive) Load(context.Context, string) ([]modelchat.Entry, error) {
	return a.entries, nil
}

func serve(t *testing.T, registry *chatservice.Registry, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	r := chi.NewRouter()
	r.Use(middleware.Session("chat_session"))
	New(registry, "Chatbot Assistant", "Ask something").RegisterRoutes(r)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func postForm(sessionID, message string) *http.Request {
	form := url.Values{"message": {message}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(middleware.SessionHeader, sessionID)
	return req
}

func TestSubmitRedirectsThenRendersMarkdownReply(t *testing.T) {
	registry := chatservice.NewRegistry(markdownConnector{}, chatservice.SessionConfig{APIKey: "key", Model: "test"})
	sessionID := uuid.NewString()

	resp := serve(t, registry, postForm(sessionID, "2+2=?"))
	require.Equal(t, http.StatusSeeOther, resp.Code)
	require.Equal(t, "/", resp.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.SessionHeader, sessionID)
	resp = serve(t, registry, req)
	require.Equal(t, http.StatusOK, resp.Code)

	body := resp.Body.String()
	require.Contains(t, body, "<title>Chatbot Assistant</title>")
	require.Contains(t, body, "2+2=?")
	require.Contains(t, body, "<strong>4</strong>")
	require.NotContains(t, body, `class="error"`)
	require.Equal(t, 2, registry.Get(context.Background(), sessionID).Len())
}

func TestSubmitShowsErrorBanner(t *testing.T) {
	registry := chatservice.NewRegistry(markdownConnector{}, chatservice.SessionConfig{Model: "test"})

	resp := serve(t, registry, postForm(uuid.NewString(), "hello"))
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)

	body := resp.Body.String()
	require.Contains(t, body, `class="error"`)
	require.Contains(t, body, "API key not found")
	require.Contains(t, body, "hello")
}

func TestIndexShowsWarningsForMalformedEntries(t *testing.T) {
	good, err := modelchat.NewTurn(modelchat.RoleUser, "<script>alert(1)</script>")
	require.NoError(t, err)
	archive := &staticArchive{entries: []modelchat.Entry{
		good,
		modelchat.MalformedTurn{Position: 1, Role: "assistant", Reason: "missing text"},
	}}
	registry := chatservice.NewRegistry(markdownConnector{}, chatservice.SessionConfig{Model: "test"},
		chatservice.WithArchive(archive))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.SessionHeader, uuid.NewString())
	resp := serve(t, registry, req)

	require.Equal(t, http.StatusOK, resp.Code)
	body := resp.Body.String()
	require.Contains(t, body, "Skipped chat entry 1: missing text.")
	require.NotContains(t, body, "<script>alert(1)</script>")
}
