package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/gemini-chat/backend/internal/middleware"
	chatservice "github.com/zhouzirui/gemini-chat/backend/internal/service/chat"
)

type echoRemote struct{}

func (echoRemote) Send(_ context.Context, text string) (string, error) {
	return "echo: " + text, nil
}

type echoConnector struct{}

func (echoConnector) Connect(context.Context, chatservice.SessionConfig) (chatservice.RemoteSession, error) {
	return echoRemote{}, nil
}

type slowRemote struct {
	delay time.Duration
}

func (s slowRemote) Send(_ context.Context, text string) (string, error) {
	time.Sleep(s.delay)
	return "late: " + text, nil
}

type slowConnector struct {
	delay time.Duration
}

func (s slowConnector) Connect(context.Context, chatservice.SessionConfig) (chatservice.RemoteSession, error) {
	return slowRemote{delay: s.delay}, nil
}

type received struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dial(t *testing.T, registry *chatservice.Registry, sessionID string) *websocket.Conn {
	t.Helper()
	return dialHandler(t, New(registry), sessionID)
}

func dialHandler(t *testing.T, h *Handler, sessionID string) *websocket.Conn {
	t.Helper()

	r := chi.NewRouter()
	r.Use(middleware.Session("chat_session"))
	h.RegisterRoutes(r)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	header := http.Header{}
	header.Set(middleware.SessionHeader, sessionID)
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func next(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketReplaysTranscriptThenChats(t *testing.T) {
	registry := chatservice.NewRegistry(echoConnector{}, chatservice.SessionConfig{APIKey: "key", Model: "test"})
	sessionID := uuid.NewString()
	_, err := registry.Get(context.Background(), sessionID).Submit(context.Background(), "earlier")
	require.NoError(t, err)

	conn := dial(t, registry, sessionID)

	require.Equal(t, "turn", next(t, conn).Type)
	require.Equal(t, "turn", next(t, conn).Type)
	ready := next(t, conn)
	require.Equal(t, "ready", ready.Type)
	require.JSONEq(t, `{"turns":2}`, string(ready.Data))

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "message", Text: "hello"}))

	user := next(t, conn)
	require.Equal(t, "turn", user.Type)
	require.Contains(t, string(user.Data), `"text":"hello"`)

	reply := next(t, conn)
	require.Equal(t, "turn", reply.Type)
	require.Contains(t, string(reply.Data), `"text":"echo: hello"`)
}

func TestWebSocketReportsErrors(t *testing.T) {
	registry := chatservice.NewRegistry(echoConnector{}, chatservice.SessionConfig{Model: "test"})
	conn := dial(t, registry, uuid.NewString())
	require.Equal(t, "ready", next(t, conn).Type)

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "audio"}))
	unsupported := next(t, conn)
	require.Equal(t, "error", unsupported.Type)
	require.Contains(t, string(unsupported.Data), "unsupported message type")

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "message", Text: "hello"}))
	require.Equal(t, "turn", next(t, conn).Type)
	missingKey := next(t, conn)
	require.Equal(t, "error", missingKey.Type)
	require.Contains(t, string(missingKey.Data), `"kind":"config"`)
}

func TestWebSocketSurvivesReplySlowerThanReadTimeout(t *testing.T) {
	registry := chatservice.NewRegistry(slowConnector{delay: 600 * time.Millisecond}, chatservice.SessionConfig{APIKey: "key", Model: "test"})
	h := New(registry)
	h.pongWait = 250 * time.Millisecond
	conn := dialHandler(t, h, uuid.NewString())
	require.Equal(t, "ready", next(t, conn).Type)

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "message", Text: "first"}))
	require.Equal(t, "turn", next(t, conn).Type)
	reply := next(t, conn)
	require.Equal(t, "turn", reply.Type)
	require.Contains(t, string(reply.Data), `"text":"late: first"`)

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "message", Text: "second"}))
	require.Equal(t, "turn", next(t, conn).Type)
	reply = next(t, conn)
	require.Contains(t, string(reply.Data), `"text":"late: second"`)
}

func TestPingLoopKeepsSessionActive(t *testing.T) {
	registry := chatservice.NewRegistry(echoConnector{}, chatservice.SessionConfig{APIKey: "key"}, chatservice.WithIdleTTL(time.Hour))
	h := New(registry)
	h.pingPeriod = 20 * time.Millisecond
	sessionID := uuid.NewString()
	conn := dialHandler(t, h, sessionID)
	require.Equal(t, "ready", next(t, conn).Type)

	m := registry.Get(context.Background(), sessionID)
	seen := m.LastActive()
	require.Eventually(t, func() bool {
		return m.LastActive().After(seen)
	}, 2*time.Second, 10*time.Millisecond)
}
