package apiclient

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/learnhub/studyroom/internal/models"
)

// GetSession loads a co-viewing session.
func (c *Client) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	var s models.Session
	if err := c.Get(ctx, fmt.Sprintf("/api/sessions/%s", sessionID), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSections loads the content tree shown in the session's browser.
func (c *Client) ListSections(ctx context.Context, sessionID uuid.UUID) ([]models.Section, error) {
	var sections []models.Section
	if err := c.Get(ctx, fmt.Sprintf("/api/sessions/%s/sections", sessionID), &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

// ListMessages fetches the session's chat history in server order.
func (c *Client) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]models.ChatMessage, error) {
	var list []models.ChatMessage
	if err := c.Get(ctx, fmt.Sprintf("/api/sessions/%s/messages", sessionID), &list); err != nil {
		return nil, err
	}
	return list, nil
}

// PostMessage persists a chat message and returns the stored record.
func (c *Client) PostMessage(ctx context.Context, sessionID uuid.UUID, content string) (*models.ChatMessage, error) {
	var m models.ChatMessage
	body := map[string]string{"content": content}
	if err := c.Post(ctx, fmt.Sprintf("/api/sessions/%s/messages", sessionID), body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetTeacherProfile fetches the signed-in teacher's profile.
func (c *Client) GetTeacherProfile(ctx context.Context) (*models.TeacherProfile, error) {
	var p models.TeacherProfile
	if err := c.Get(ctx, "/api/teachers/me/profile", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateTeacherProfile saves profile edits and returns the server's copy.
func (c *Client) UpdateTeacherProfile(ctx context.Context, p models.TeacherProfile) (*models.TeacherProfile, error) {
	var out models.TeacherProfile
	if err := c.Put(ctx, "/api/teachers/me/profile", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitTestimonial posts a testimonial.
func (c *Client) SubmitTestimonial(ctx context.Context, t models.Testimonial) (*models.Testimonial, error) {
	var out models.Testimonial
	body := map[string]interface{}{"content": t.Content, "rating": t.Rating}
	if err := c.Post(ctx, "/api/testimonials", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
