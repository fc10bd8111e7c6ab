package models

import (
	"time"

	"github.com/google/uuid"
)

// ContentType is the kind of catalog item a co-viewing session is built around.
type ContentType string

const (
	ContentCourse    ContentType = "course"
	ContentFormation ContentType = "formation"
)

// Session pairs a host and a guest around one piece of content.
type Session struct {
	ID          uuid.UUID   `json:"id"`
	HostID      uuid.UUID   `json:"hostId"`
	GuestID     uuid.UUID   `json:"guestId"`
	ContentType ContentType `json:"contentType"`
	ContentID   uuid.UUID   `json:"contentId"`
	CreatedAt   time.Time   `json:"createdAt"`
	ScheduledAt *time.Time  `json:"scheduledAt,omitempty"`
}

// HasParticipant reports whether userID is the host or the guest.
func (s *Session) HasParticipant(userID uuid.UUID) bool {
	return userID != uuid.Nil && (s.HostID == userID || s.GuestID == userID)
}

// Peer returns the other participant.
func (s *Session) Peer(userID uuid.UUID) uuid.UUID {
	if s.HostID == userID {
		return s.GuestID
	}
	return s.HostID
}

// ResourceKind classifies a resource within a section.
type ResourceKind string

const (
	ResourceVideo    ResourceKind = "video"
	ResourceDocument ResourceKind = "document"
	ResourceLink     ResourceKind = "link"
)

// Section is an ordered chapter of the session's content.
type Section struct {
	ID        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	Position  int        `json:"position"`
	Resources []Resource `json:"resources"`
}

// Resource is a single item (video, document, link) inside a section.
type Resource struct {
	ID              uuid.UUID    `json:"id"`
	SectionID       uuid.UUID    `json:"sectionId"`
	Title           string       `json:"title"`
	Kind            ResourceKind `json:"kind"`
	FileKey         string       `json:"fileKey,omitempty"`
	URL             string       `json:"url"`
	DurationSeconds float64      `json:"durationSeconds,omitempty"`
	Position        int          `json:"position"`
}
