package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	chatservice "github.com/zhouzirui/gemini-chat/backend/internal/service/chat"
)

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// RespondError 发送错误响应
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"error": message})
}

// StatusForError 将聊天错误映射为 HTTP 状态码
func StatusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, chatservice.ErrEmptyMessage):
		return http.StatusBadRequest
	case chatservice.IsConfigError(err):
		return http.StatusServiceUnavailable
	case chatservice.IsServiceError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorKind 返回错误类别，供前端区分展示方式
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, chatservice.ErrEmptyMessage):
		return "validation"
	case chatservice.IsConfigError(err):
		return "config"
	case chatservice.IsServiceError(err):
		return "service"
	default:
		return "internal"
	}
}
