// Package protocol defines the relay wire format shared by the hub and its clients.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/learnhub/studyroom/internal/models"
)

// Event names carried in Envelope.Event.
const (
	EventJoinSession    = "join-session"
	EventPeerJoined     = "peer-joined"
	EventSendMessage    = "send-message"
	EventReceiveMessage = "receive-message"
	EventVideoPlay      = "video-play"
	EventVideoPause     = "video-pause"
	EventVideoSeek      = "video-seek"
	EventError          = "error"
)

var ErrMissingSession = errors.New("payload has no sessionId")

// Envelope is the WebSocket message frame: {"event": "...", "data": {...}}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinPayload announces intent to join a session room.
type JoinPayload struct {
	SessionID uuid.UUID `json:"sessionId"`
}

// PeerJoinedPayload tells the room that a participant attached.
type PeerJoinedPayload struct {
	SessionID uuid.UUID `json:"sessionId"`
	UserID    uuid.UUID `json:"userId"`
	Name      string    `json:"name,omitempty"`
}

// ErrorPayload is sent to a single connection when its request is refused.
type ErrorPayload struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

// PlaybackEventName maps a playback kind to its relay event.
func PlaybackEventName(kind models.PlaybackKind) (string, error) {
	switch kind {
	case models.PlaybackPlay:
		return EventVideoPlay, nil
	case models.PlaybackPause:
		return EventVideoPause, nil
	case models.PlaybackSeek:
		return EventVideoSeek, nil
	default:
		return "", fmt.Errorf("unknown playback kind %q", kind)
	}
}

// PlaybackKindForEvent is the inverse of PlaybackEventName.
func PlaybackKindForEvent(event string) (models.PlaybackKind, bool) {
	switch event {
	case EventVideoPlay:
		return models.PlaybackPlay, true
	case EventVideoPause:
		return models.PlaybackPause, true
	case EventVideoSeek:
		return models.PlaybackSeek, true
	default:
		return "", false
	}
}

// SessionOf extracts the sessionId every relay payload is keyed by.
func SessionOf(data json.RawMessage) (uuid.UUID, error) {
	var keyed struct {
		SessionID uuid.UUID `json:"sessionId"`
	}
	if len(data) == 0 {
		return uuid.Nil, ErrMissingSession
	}
	if err := json.Unmarshal(data, &keyed); err != nil {
		return uuid.Nil, fmt.Errorf("decode payload: %w", err)
	}
	if keyed.SessionID == uuid.Nil {
		return uuid.Nil, ErrMissingSession
	}
	return keyed.SessionID, nil
}

// DecodePlayback decodes a video-* payload and fills Kind from the event name.
// Senders may omit kind since the event already carries it.
func DecodePlayback(event string, data json.RawMessage) (models.PlaybackEvent, error) {
	kind, ok := PlaybackKindForEvent(event)
	if !ok {
		return models.PlaybackEvent{}, fmt.Errorf("not a playback event: %s", event)
	}
	var ev models.PlaybackEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return models.PlaybackEvent{}, fmt.Errorf("decode playback: %w", err)
	}
	ev.Kind = kind
	return ev, nil
}
