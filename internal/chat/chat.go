// Package chat keeps a session's conversation: history from the API,
// local sends persisted then relayed, and peer messages from the channel.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/studyroom/internal/models"
	"github.com/learnhub/studyroom/internal/protocol"
)

// ErrEmptyMessage is returned by Send when the input is blank; nothing is sent.
var ErrEmptyMessage = errors.New("message is empty")

// MessageAPI persists and lists session messages.
type MessageAPI interface {
	ListMessages(ctx context.Context, sessionID uuid.UUID) ([]models.ChatMessage, error)
	PostMessage(ctx context.Context, sessionID uuid.UUID, content string) (*models.ChatMessage, error)
}

// Emitter sends an event on the session channel.
type Emitter interface {
	Emit(event string, payload interface{}) error
}

// Chat is the message list and input box of one session view.
type Chat struct {
	sessionID uuid.UUID
	api       MessageAPI
	emitter   Emitter
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	messages []models.ChatMessage
	input    string
	sending  bool
	onUpdate func([]models.ChatMessage)
}

// Option configures a Chat.
type Option func(*Chat)

// WithClock overrides the clock used to stamp received messages.
func WithClock(now func() time.Time) Option {
	return func(c *Chat) { c.now = now }
}

// New creates the chat for sessionID.
func New(sessionID uuid.UUID, api MessageAPI, emitter Emitter, logger *zap.Logger, opts ...Option) *Chat {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Chat{sessionID: sessionID, api: api, emitter: emitter, logger: logger, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// OnUpdate sets the observer called with a copy of the list after every change.
func (c *Chat) OnUpdate(fn func([]models.ChatMessage)) {
	c.mu.Lock()
	c.onUpdate = fn
	c.mu.Unlock()
}

// SetInput replaces the pending input text.
func (c *Chat) SetInput(s string) {
	c.mu.Lock()
	c.input = s
	c.mu.Unlock()
}

// Input returns the pending input text.
func (c *Chat) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// Messages returns a copy of the list in display order.
func (c *Chat) Messages() []models.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.ChatMessage(nil), c.messages...)
}

// LoadHistory fetches the session's messages once and replaces the list, keeping server order.
func (c *Chat) LoadHistory(ctx context.Context) error {
	history, err := c.api.ListMessages(ctx, c.sessionID)
	if err != nil {
		c.logger.Warn("load chat history failed", zap.String("session_id", c.sessionID.String()), zap.Error(err))
		return err
	}
	c.mu.Lock()
	c.messages = append([]models.ChatMessage(nil), history...)
	c.mu.Unlock()
	c.notify()
	return nil
}

// Send persists the input, appends it, relays it to the peer and clears the input.
// On failure the input is kept and nothing is appended. There is no retry.
func (c *Chat) Send(ctx context.Context) error {
	c.mu.Lock()
	raw := c.input
	content := strings.TrimSpace(raw)
	if content == "" {
		c.mu.Unlock()
		return ErrEmptyMessage
	}
	c.sending = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.sending = false
		c.mu.Unlock()
	}()

	saved, err := c.api.PostMessage(ctx, c.sessionID, content)
	if err != nil {
		c.logger.Warn("send message failed", zap.String("session_id", c.sessionID.String()), zap.Error(err))
		return err
	}
	msg := *saved
	if msg.SessionID == uuid.Nil {
		msg.SessionID = c.sessionID
	}

	c.mu.Lock()
	c.messages = append(c.messages, msg)
	// keep whatever was typed while the request was in flight
	if c.input == raw {
		c.input = ""
	}
	c.mu.Unlock()
	c.notify()

	if err := c.emitter.Emit(protocol.EventSendMessage, msg); err != nil {
		// persisted already; the peer will see it on its next history load
		c.logger.Warn("relay message failed", zap.String("message_id", msg.ID.String()), zap.Error(err))
	}
	return nil
}

// Sending reports whether a Send is in flight.
func (c *Chat) Sending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

// OnRemoteMessage appends a peer's message stamped with the local receipt time.
// Messages for other sessions are ignored.
func (c *Chat) OnRemoteMessage(msg models.ChatMessage) {
	if msg.SessionID != c.sessionID {
		return
	}
	msg.Timestamp = c.now()
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
	c.notify()
}

// HandleRelay decodes a receive-message event and applies it.
func (c *Chat) HandleRelay(data json.RawMessage) {
	var msg models.ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("bad chat payload", zap.Error(err))
		return
	}
	c.OnRemoteMessage(msg)
}

func (c *Chat) notify() {
	c.mu.Lock()
	fn := c.onUpdate
	snapshot := append([]models.ChatMessage(nil), c.messages...)
	c.mu.Unlock()
	if fn != nil {
		fn(snapshot)
	}
}
