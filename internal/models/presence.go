package models

import (
	"time"

	"github.com/google/uuid"
)

// PresenceEntry tracks one join/leave span of a participant in a session.
type PresenceEntry struct {
	ID           uuid.UUID  `json:"id"`
	SessionID    uuid.UUID  `json:"sessionId"`
	UserID       uuid.UUID  `json:"userId"`
	JoinedAt     time.Time  `json:"joinedAt"`
	LeftAt       *time.Time `json:"leftAt,omitempty"`
	WatchSeconds int64      `json:"watchSeconds"`
}
