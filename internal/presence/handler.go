package presence

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/learnhub/studyroom/internal/middleware"
	"github.com/learnhub/studyroom/internal/models"
	"github.com/learnhub/studyroom/pkg/response"
)

// Lister reads presence spans.
type Lister interface {
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.PresenceEntry, error)
}

// ParticipantChecker gates access to a session's presence log.
type ParticipantChecker interface {
	IsParticipant(ctx context.Context, sessionID, userID uuid.UUID) (bool, error)
}

// Handler handles GET /api/sessions/:id/presence.
type Handler struct {
	repo  Lister
	authz ParticipantChecker
}

// NewHandler creates a presence handler.
func NewHandler(repo Lister, authz ParticipantChecker) *Handler {
	return &Handler{repo: repo, authz: authz}
}

// List returns who was in the session and for how long.
func (h *Handler) List(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	ok, err := h.authz.IsParticipant(c.Request.Context(), sessionID, middleware.UserID(c))
	if err != nil {
		response.Internal(c, "failed to load session")
		return
	}
	if !ok {
		response.Forbidden(c, "not a participant of this session")
		return
	}
	list, err := h.repo.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		response.Internal(c, "failed to list presence")
		return
	}
	response.OK(c, gin.H{"presence": list})
}
