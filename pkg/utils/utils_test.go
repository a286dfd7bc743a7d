package utils

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	chatservice "github.com/zhouzirui/gemini-chat/backend/internal/service/chat"
)

func TestStatusAndKindForError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{nil, http.StatusOK, ""},
		{chatservice.ErrEmptyMessage, http.StatusBadRequest, "validation"},
		{&chatservice.ConfigError{Reason: "missing credential"}, http.StatusServiceUnavailable, "config"},
		{&chatservice.ServiceError{Op: "send", Err: errors.New("quota")}, http.StatusBadGateway, "service"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.status, StatusForError(tc.err))
		require.Equal(t, tc.kind, ErrorKind(tc.err))
	}
}

func TestSendSSEEvent(t *testing.T) {
	resp := httptest.NewRecorder()
	SetupSSEHeaders(resp)
	SendSSEEvent(resp, resp, "turn", map[string]string{"text": "4"})

	require.Equal(t, "text/event-stream", resp.Header().Get("Content-Type"))
	require.True(t, strings.HasPrefix(resp.Body.String(), "event: turn\ndata: {\"text\":\"4\"}\n\n"))
	require.True(t, resp.Flushed)
}
