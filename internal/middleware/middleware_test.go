package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func echoSession() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(SessionID(r.Context())))
	})
}

func TestSessionIssuesCookie(t *testing.T) {
	h := Session("chat_session")(echoSession())
	resp := httptest.NewRecorder()

	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := resp.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "chat_session", cookies[0].Name)
	require.Equal(t, cookies[0].Value, resp.Body.String())
	_, err := uuid.Parse(resp.Body.String())
	require.NoError(t, err)
}

func TestSessionReusesCookie(t *testing.T) {
	h := Session("chat_session")(echoSession())
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "chat_session", Value: id})
	resp := httptest.NewRecorder()

	h.ServeHTTP(resp, req)

	require.Equal(t, id, resp.Body.String())
	require.Empty(t, resp.Result().Cookies())
}

func TestSessionPrefersHeader(t *testing.T) {
	h := Session("chat_session")(echoSession())
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeader, id)
	req.AddCookie(&http.Cookie{Name: "chat_session", Value: uuid.NewString()})
	resp := httptest.NewRecorder()

	h.ServeHTTP(resp, req)

	require.Equal(t, id, resp.Body.String())
	require.Equal(t, id, resp.Header().Get(SessionHeader))
}

func TestSessionReplacesInvalidID(t *testing.T) {
	h := Session("chat_session")(echoSession())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "chat_session", Value: "../../etc"})
	resp := httptest.NewRecorder()

	h.ServeHTTP(resp, req)

	require.NotEqual(t, "../../etc", resp.Body.String())
	require.Len(t, resp.Result().Cookies(), 1)
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	resp := httptest.NewRecorder()

	h.ServeHTTP(resp, httptest.NewRequest(http.MethodOptions, "/api/messages", nil))

	require.False(t, called)
	require.Equal(t, http.StatusNoContent, resp.Code)
	require.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
}
