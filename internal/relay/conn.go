// Package relay is the client side of the real-time relay: one WebSocket
// connection carrying named JSON events.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/learnhub/studyroom/internal/protocol"
)

const writeTimeout = 10 * time.Second

// ErrClosed is returned by Emit once the connection is gone.
var ErrClosed = errors.New("relay connection closed")

// State of a connection. There is no reconnecting state: a dropped connection stays disconnected.
type State int32

const (
	StateDisconnected State = iota
	StateConnected
)

func (s State) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "disconnected"
}

// Handler receives the raw data of one event.
type Handler func(data json.RawMessage)

// Conn is a relay connection. Handlers run on the connection's read goroutine, in arrival order.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	mu       sync.RWMutex
	handlers map[string]map[int]Handler
	nextID   int

	state     atomic.Int32
	done      chan struct{}
	closeOnce sync.Once

	logger *zap.Logger
}

// Dial connects to the relay at rawURL, authenticating with token.
func Dial(ctx context.Context, rawURL, token string, logger *zap.Logger) (*Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse relay url: %w", err)
	}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial relay: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	c := &Conn{
		ws:       ws,
		handlers: make(map[string]map[int]Handler),
		done:     make(chan struct{}),
		logger:   logger,
	}
	c.state.Store(int32(StateConnected))
	go c.readLoop()
	logger.Info("relay connected", zap.String("url", u.Redacted()))
	return c, nil
}

// State reports whether the connection is up.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// Done is closed when the connection goes down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// On registers h for event and returns a func that removes it.
func (c *Conn) On(event string, h Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handlers[event] == nil {
		c.handlers[event] = make(map[int]Handler)
	}
	id := c.nextID
	c.nextID++
	c.handlers[event][id] = h
	return func() {
		c.mu.Lock()
		delete(c.handlers[event], id)
		c.mu.Unlock()
	}
}

// Emit sends one event. Payload is JSON-encoded into the envelope's data.
func (c *Conn) Emit(event string, payload interface{}) error {
	if c.State() != StateConnected {
		return ErrClosed
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteJSON(protocol.Envelope{Event: event, Data: data}); err != nil {
		c.shutdown()
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

// Close sends a close frame and tears the connection down.
func (c *Conn) Close() error {
	if c.State() == StateConnected {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
	}
	c.shutdown()
	return nil
}

func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateDisconnected))
		_ = c.ws.Close()
		close(c.done)
		c.logger.Info("relay disconnected")
	})
}

func (c *Conn) readLoop() {
	defer c.shutdown()
	for {
		var msg protocol.Envelope
		if err := c.ws.ReadJSON(&msg); err != nil {
			if c.State() == StateConnected && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.logger.Warn("relay read failed", zap.Error(err))
			}
			return
		}
		c.dispatch(msg)
	}
}

func (c *Conn) dispatch(msg protocol.Envelope) {
	c.mu.RLock()
	hs := make([]Handler, 0, len(c.handlers[msg.Event]))
	for _, h := range c.handlers[msg.Event] {
		hs = append(hs, h)
	}
	c.mu.RUnlock()
	if len(hs) == 0 {
		c.logger.Debug("unhandled relay event", zap.String("event", msg.Event))
		return
	}
	for _, h := range hs {
		h(msg.Data)
	}
}
