package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is one line of a session conversation.
type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"sessionId"`
	SenderID  uuid.UUID `json:"senderId"`
	Sender    string    `json:"sender,omitempty"` // display name when known
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
