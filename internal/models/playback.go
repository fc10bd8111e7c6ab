package models

import "github.com/google/uuid"

// PlaybackKind is the action carried by a PlaybackEvent.
type PlaybackKind string

const (
	PlaybackPlay  PlaybackKind = "play"
	PlaybackPause PlaybackKind = "pause"
	PlaybackSeek  PlaybackKind = "seek"
)

// PlaybackEvent is relayed between participants; never persisted.
type PlaybackEvent struct {
	Kind        PlaybackKind `json:"kind"`
	CurrentTime float64      `json:"currentTime"`
	SessionID   uuid.UUID    `json:"sessionId"`
}
