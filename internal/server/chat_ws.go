package server

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// cross-origin socket clients are allowed, matching the CORS policy
	CheckOrigin: func(*http.Request) bool { return true },
}

// socketConn adapts a websocket connection to the chat registry's Conn
// surface. Gorilla permits one concurrent writer, so writes serialize on a
// mutex: the registry may fan out to this connection while its own read
// loop replies.
type socketConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newSocketConn(conn *websocket.Conn) *socketConn {
	return &socketConn{conn: conn}
}

func (s *socketConn) WriteJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *socketConn) Close() error {
	return s.conn.Close()
}

type inboundMessagePayload struct {
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

// handleChatSocket serves one conversation-room connection. Each inbound
// message is persisted before any fan-out; a persistence failure closes the
// socket without broadcasting, and the client observes the connection error.
func (h *httpHandler) handleChatSocket(c *gin.Context) {
	conversationID := c.Param("conversation_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	socket := newSocketConn(conn)

	registry := h.chats.Registry()
	registry.Join(conversationID, socket)
	defer func() {
		registry.Leave(conversationID, socket)
		_ = socket.Close()
	}()

	for {
		var inbound inboundMessagePayload
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}

		_, err := h.chats.SendMessage(
			c.Request.Context(),
			conversationID,
			inbound.SenderID,
			inbound.ReceiverID,
			inbound.Content,
		)
		if err != nil {
			h.logger.Warn("message send failed",
				zap.String("conversation_id", conversationID),
				zap.Error(err))
			return
		}
	}
}

// handleNotificationSocket parks the authenticated user's single live
// notification connection in the registry until the peer disconnects.
func (h *httpHandler) handleNotificationSocket(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	if userID == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	socket := newSocketConn(conn)

	registry := h.chats.Registry()
	registry.Attach(userID, socket)
	defer func() {
		registry.Detach(userID, socket)
		_ = socket.Close()
	}()

	// the notification channel is write-only; the read loop only watches
	// for the client going away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
