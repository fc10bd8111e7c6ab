package models

import (
	"time"

	"github.com/google/uuid"
)

// TeacherProfile is the cached profile shown across the client.
type TeacherProfile struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
