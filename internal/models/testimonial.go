package models

import (
	"time"

	"github.com/google/uuid"
)

// TestimonialStatus tells a server-acknowledged record from a local one.
type TestimonialStatus string

const (
	TestimonialSynced      TestimonialStatus = "synced"
	TestimonialPendingSync TestimonialStatus = "pendingSync"
)

// Testimonial is a learner's review of the platform.
type Testimonial struct {
	ID        uuid.UUID         `json:"id"`
	AuthorID  uuid.UUID         `json:"authorId"`
	Content   string            `json:"content"`
	Rating    int               `json:"rating"`
	Status    TestimonialStatus `json:"status"`
	CreatedAt time.Time         `json:"createdAt"`
}
