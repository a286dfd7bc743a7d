package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/gemini-chat/backend/internal/middleware"
	chatservice "github.com/zhouzirui/gemini-chat/backend/internal/service/chat"
	"github.com/zhouzirui/gemini-chat/backend/pkg/utils"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Handler WebSocket聊天处理器，每个连接是一个输入循环
type Handler struct {
	registry   *chatservice.Registry
	upgrader   websocket.Upgrader
	pongWait   time.Duration
	pingPeriod time.Duration
}

// New 创建WebSocket处理器
func New(registry *chatservice.Registry) *Handler {
	return &Handler{
		registry: registry,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

// InboundMessage 客户端消息
type InboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// OutgoingMessage 服务端消息，Data 随 Type 变化
type OutgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type errorData struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

// conn 串行化同一连接上的写操作
type conn struct {
	ws        *websocket.Conn
	sessionID string
	mu        sync.Mutex
}

func (c *conn) send(msgType string, data interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	msg := OutgoingMessage{
		Type:      msgType,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := c.ws.WriteJSON(msg); err != nil {
		log.Debug().Err(err).Str("session", c.sessionID).Str("type", msgType).Msg("websocket write failed")
	}
}

func (c *conn) sendError(message, kind string) {
	c.send("error", errorData{Message: message, Kind: kind})
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.SessionID(r.Context())
	m := h.registry.Get(r.Context(), sessionID)

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("session", sessionID).Msg("websocket upgrade failed")
		return
	}
	defer ws.Close()

	log.Info().Str("session", sessionID).Msg("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &conn{ws: ws, sessionID: sessionID}

	ws.SetReadDeadline(time.Now().Add(h.pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(h.pongWait))
		return nil
	})

	go pingLoop(ctx, ws, m, h.pingPeriod)

	view := m.Snapshot()
	for _, turn := range view.Turns {
		c.send("turn", turn)
	}
	for _, warning := range view.Warnings {
		c.send("warning", map[string]string{"message": warning})
	}
	c.send("ready", map[string]int{"turns": len(view.Turns)})

	for {
		var msg InboundMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("session", sessionID).Msg("websocket read error")
			}
			return
		}

		switch msg.Type {
		case "message":
			// 等待模型回复期间没有读操作处理 pong，暂停读超时
			ws.SetReadDeadline(time.Time{})
			h.handleMessage(ctx, c, m, msg.Text)
		default:
			c.sendError("unsupported message type: "+msg.Type, "validation")
		}
		ws.SetReadDeadline(time.Now().Add(h.pongWait))
	}
}

func (h *Handler) handleMessage(ctx context.Context, c *conn, m *chatservice.Manager, text string) {
	turns, err := m.SubmitTurns(ctx, text)
	for _, turn := range turns {
		c.send("turn", turn)
	}
	if err != nil {
		c.sendError(chatservice.Notice(err), utils.ErrorKind(err))
	}
}

// pingLoop 定期发送ping消息并保持会话活跃，WriteControl 可与 WriteJSON 并发
func pingLoop(ctx context.Context, ws *websocket.Conn, m *chatservice.Manager, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Touch()
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
