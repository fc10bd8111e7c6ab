package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/studyroom/internal/protocol"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// JoinHandler is called after a participant joins a session room.
type JoinHandler func(sessionID, userID uuid.UUID)

// LeaveHandler is called after a participant leaves a session room.
type LeaveHandler func(sessionID, userID uuid.UUID, joinedAt time.Time)

// Hub maintains session_id -> set of connections and relays events between them.
// With Redis configured, relayed events go through pub/sub so every instance delivers them once.
type Hub struct {
	// sessionID -> map[clientID]*Client
	sessions    map[uuid.UUID]map[string]*Client
	subs        map[uuid.UUID]func() // cancel Redis subscription per session
	subscribing map[uuid.UUID]bool
	mu          sync.RWMutex
	logger      *zap.Logger
	redis       RedisPublisher
	redisSub    RedisSubscriber
	onJoin      JoinHandler
	onLeave     LeaveHandler
}

// RedisPublisher publishes a relayed event for other instances.
type RedisPublisher interface {
	PublishSessionEvent(sessionID uuid.UUID, origin, event string, payload []byte) error
}

// RedisSubscriber subscribes to a session channel and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeSession(sessionID uuid.UUID, handler func(origin, event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. redisPub and redisSub may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		sessions:    make(map[uuid.UUID]map[string]*Client),
		subs:        make(map[uuid.UUID]func()),
		subscribing: make(map[uuid.UUID]bool),
		logger:      logger,
		redis:       redisPub,
		redisSub:    redisSub,
	}
}

// SetPresenceHandlers sets the callbacks used to log join/leave spans.
func (h *Hub) SetPresenceHandlers(onJoin JoinHandler, onLeave LeaveHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onJoin = onJoin
	h.onLeave = onLeave
}

// Register adds a client to its session room and makes sure the instance is subscribed
// to the session's Redis channel. A failed subscribe is retried on the next Register.
// Registering a client already in the room is a no-op.
func (h *Hub) Register(c *Client) {
	sessionID := c.SessionID()
	h.mu.Lock()
	room := h.sessions[sessionID]
	if room == nil {
		room = make(map[string]*Client)
		h.sessions[sessionID] = room
	}
	if _, ok := room[c.ID]; ok {
		h.mu.Unlock()
		return
	}
	room[c.ID] = c
	_, subscribed := h.subs[sessionID]
	subscribe := h.redisSub != nil && !subscribed && !h.subscribing[sessionID]
	if subscribe {
		h.subscribing[sessionID] = true
	}
	onJoin := h.onJoin
	h.mu.Unlock()

	if subscribe {
		h.subscribe(sessionID)
	}
	if onJoin != nil {
		onJoin(sessionID, c.UserID)
	}
	h.logger.Debug("client joined session", zap.String("client_id", c.ID), zap.String("session_id", sessionID.String()))
}

// subscribe runs the Redis round trip without holding h.mu.
func (h *Hub) subscribe(sessionID uuid.UUID) {
	cancel, err := h.redisSub.SubscribeSession(sessionID, func(origin, event string, payload []byte) {
		h.deliver(sessionID, origin, event, payload)
	})

	h.mu.Lock()
	delete(h.subscribing, sessionID)
	if err != nil {
		h.mu.Unlock()
		h.logger.Warn("redis subscribe failed, relaying locally", zap.String("session_id", sessionID.String()), zap.Error(err))
		return
	}
	if _, live := h.sessions[sessionID]; !live {
		h.mu.Unlock()
		cancel()
		return
	}
	h.subs[sessionID] = cancel
	h.mu.Unlock()
}

func (h *Hub) subscribed(sessionID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.subs[sessionID]
	return ok
}

// Unregister removes a client from its session room. Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	sessionID := c.SessionID()
	if sessionID == uuid.Nil {
		return
	}
	h.mu.Lock()
	room, ok := h.sessions[sessionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, member := room[c.ID]; !member {
		h.mu.Unlock()
		return
	}
	delete(room, c.ID)
	if len(room) == 0 {
		delete(h.sessions, sessionID)
		if cancel, ok := h.subs[sessionID]; ok {
			cancel()
			delete(h.subs, sessionID)
		}
	}
	onLeave := h.onLeave
	h.mu.Unlock()
	if onLeave != nil {
		onLeave(sessionID, c.UserID, c.JoinedAt())
	}
	h.logger.Debug("client left session", zap.String("client_id", c.ID), zap.String("session_id", sessionID.String()))
}

// Relay forwards an event to every client of the session except origin.
// With a live Redis subscription the event is published only and the subscriber callback
// performs the delivery, so local clients are not served twice. Without one, local clients
// are served directly and the publish only reaches other instances.
func (h *Hub) Relay(sessionID uuid.UUID, origin, event string, payload interface{}) {
	data, err := marshalPayload(payload)
	if err != nil {
		h.logger.Warn("relay marshal failed", zap.String("event", event), zap.Error(err))
		return
	}
	if h.redis != nil {
		if err := h.redis.PublishSessionEvent(sessionID, origin, event, data); err != nil {
			h.logger.Warn("redis publish failed, delivering locally", zap.String("event", event), zap.Error(err))
		} else if h.subscribed(sessionID) {
			return
		}
	}
	h.deliver(sessionID, origin, event, data)
}

// PeerCount returns the number of connected clients in a session.
func (h *Hub) PeerCount(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// SendToClient sends a message to a single connection.
func (h *Hub) SendToClient(c *Client, event string, payload interface{}) {
	data, err := marshalPayload(payload)
	if err != nil {
		return
	}
	c.enqueue(protocol.Envelope{Event: event, Data: data})
}

func (h *Hub) deliver(sessionID uuid.UUID, except, event string, data []byte) {
	msg := protocol.Envelope{Event: event, Data: data}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.sessions[sessionID]))
	for id, c := range h.sessions[sessionID] {
		if id != except {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(msg)
	}
}

func marshalPayload(payload interface{}) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(payload)
	}
}
