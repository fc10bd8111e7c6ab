package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/learnhub/studyroom/internal/auth"
	"github.com/learnhub/studyroom/internal/protocol"
)

const (
	sendBuffer   = 256
	readLimit    = 65536
	writeTimeout = 10 * time.Second
	authzTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // bearer token is the gate, not the origin
	},
}

// TokenValidator validates the bearer token presented on upgrade.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// SessionAuthorizer decides whether a user may join a session room.
type SessionAuthorizer interface {
	IsParticipant(ctx context.Context, sessionID, userID uuid.UUID) (bool, error)
}

// Client represents a single WebSocket connection.
// It belongs to at most one session room at a time.
type Client struct {
	ID     string
	UserID uuid.UUID
	Name   string

	mu        sync.RWMutex
	sessionID uuid.UUID
	joinedAt  time.Time

	hub   *Hub
	authz SessionAuthorizer
	conn  *websocket.Conn
	send  chan protocol.Envelope
	done  chan struct{}

	logger *zap.Logger
}

// SessionID returns the joined session or uuid.Nil.
func (c *Client) SessionID() uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// JoinedAt returns when the client joined its current session.
func (c *Client) JoinedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.joinedAt
}

func (c *Client) setSession(id uuid.UUID) {
	c.mu.Lock()
	c.sessionID = id
	c.joinedAt = time.Now()
	c.mu.Unlock()
}

func (c *Client) enqueue(msg protocol.Envelope) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		c.logger.Warn("send buffer full, dropping", zap.String("client_id", c.ID), zap.String("event", msg.Event))
	}
}

// ServeWs handles the WebSocket upgrade and runs the client loop.
// The token comes from the "token" query parameter or the Authorization header.
func ServeWs(hub *Hub, logger *zap.Logger, validator TokenValidator, authz SessionAuthorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "token required"})
			return
		}
		claims, err := validator.Validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:     uuid.New().String(),
			UserID: claims.UserID,
			Name:   claims.Name,
			hub:    hub,
			authz:  authz,
			conn:   conn,
			send:   make(chan protocol.Envelope, sendBuffer),
			done:   make(chan struct{}),
			logger: logger,
		}
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		close(c.done)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg protocol.Envelope
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch msg.Event {
		case protocol.EventJoinSession:
			c.join(msg.Data)
		case protocol.EventVideoPlay, protocol.EventVideoPause, protocol.EventVideoSeek:
			c.relay(msg.Event, msg.Event, msg.Data)
		case protocol.EventSendMessage:
			c.relayMessage(msg.Data)
		default:
			// ignore
		}
	}
}

func (c *Client) join(data json.RawMessage) {
	var p protocol.JoinPayload
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == uuid.Nil {
		c.refuse(protocol.EventJoinSession, "sessionId required")
		return
	}
	current := c.SessionID()
	if current == p.SessionID {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), authzTimeout)
	ok, err := c.authz.IsParticipant(ctx, p.SessionID, c.UserID)
	cancel()
	if err != nil {
		c.logger.Warn("session lookup failed", zap.String("session_id", p.SessionID.String()), zap.Error(err))
		c.refuse(protocol.EventJoinSession, "session unavailable")
		return
	}
	if !ok {
		c.refuse(protocol.EventJoinSession, "not a participant of this session")
		return
	}

	if current != uuid.Nil {
		c.hub.Unregister(c)
	}
	c.setSession(p.SessionID)
	c.hub.Register(c)
	c.hub.Relay(p.SessionID, c.ID, protocol.EventPeerJoined, protocol.PeerJoinedPayload{
		SessionID: p.SessionID,
		UserID:    c.UserID,
		Name:      c.Name,
	})
}

// relay forwards a session-keyed payload to the peers, refusing payloads for rooms the client is not in.
func (c *Client) relay(in, out string, data json.RawMessage) {
	sessionID, err := protocol.SessionOf(data)
	if err != nil {
		c.refuse(in, err.Error())
		return
	}
	if sessionID != c.SessionID() {
		c.refuse(in, "not joined to this session")
		return
	}
	c.hub.Relay(sessionID, c.ID, out, data)
}

// relayMessage forwards a chat message with the sender fields taken from the
// authenticated connection. Other fields pass through untouched.
func (c *Client) relayMessage(data json.RawMessage) {
	sessionID, err := protocol.SessionOf(data)
	if err != nil {
		c.refuse(protocol.EventSendMessage, err.Error())
		return
	}
	if sessionID != c.SessionID() {
		c.refuse(protocol.EventSendMessage, "not joined to this session")
		return
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		c.refuse(protocol.EventSendMessage, "invalid payload")
		return
	}
	fields["senderId"], _ = json.Marshal(c.UserID)
	delete(fields, "sender")
	if c.Name != "" {
		fields["sender"], _ = json.Marshal(c.Name)
	}
	c.hub.Relay(sessionID, c.ID, protocol.EventReceiveMessage, fields)
}

func (c *Client) refuse(event, message string) {
	c.hub.SendToClient(c, protocol.EventError, protocol.ErrorPayload{Event: event, Message: message})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
