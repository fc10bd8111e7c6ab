package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/studyroom/internal/middleware"
	"github.com/learnhub/studyroom/internal/models"
	"github.com/learnhub/studyroom/pkg/response"
	"github.com/learnhub/studyroom/pkg/storage"
)

// Store is the persistence the handler needs; *Repository implements it.
type Store interface {
	Create(ctx context.Context, s *models.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	ListSections(ctx context.Context, contentType models.ContentType, contentID uuid.UUID) ([]models.Section, error)
}

// CreateRequest is the body for POST /api/sessions.
type CreateRequest struct {
	HostID      uuid.UUID          `json:"hostId" binding:"required"`
	GuestID     uuid.UUID          `json:"guestId" binding:"required"`
	ContentType models.ContentType `json:"contentType" binding:"required,oneof=course formation"`
	ContentID   uuid.UUID          `json:"contentId" binding:"required"`
	ScheduledAt *time.Time         `json:"scheduledAt"`
}

// Handler serves session and content endpoints.
type Handler struct {
	store  Store
	links  storage.LinkResolver
	logger *zap.Logger
}

// NewHandler creates a sessions handler.
func NewHandler(store Store, links storage.LinkResolver, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, links: links, logger: logger}
}

// Create handles POST /api/sessions (scheduling flow; admin/teacher only).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.HostID == req.GuestID {
		response.BadRequest(c, "host and guest must differ")
		return
	}
	s := &models.Session{
		HostID:      req.HostID,
		GuestID:     req.GuestID,
		ContentType: req.ContentType,
		ContentID:   req.ContentID,
		ScheduledAt: req.ScheduledAt,
	}
	if err := h.store.Create(c.Request.Context(), s); err != nil {
		h.logger.Error("create session", zap.Error(err))
		response.Internal(c, "failed to create session")
		return
	}
	response.Created(c, s)
}

// GetByID handles GET /api/sessions/:id (participants and admins).
func (h *Handler) GetByID(c *gin.Context) {
	s, ok := h.loadForCaller(c)
	if !ok {
		return
	}
	response.OK(c, s)
}

// ListSections handles GET /api/sessions/:id/sections: the content browser tree with resolved links.
func (h *Handler) ListSections(c *gin.Context) {
	s, ok := h.loadForCaller(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	sections, err := h.store.ListSections(ctx, s.ContentType, s.ContentID)
	if err != nil {
		h.logger.Error("list sections", zap.String("session_id", s.ID.String()), zap.Error(err))
		response.Internal(c, "failed to list sections")
		return
	}
	for i := range sections {
		for j := range sections[i].Resources {
			res := &sections[i].Resources[j]
			if res.FileKey == "" || h.links == nil {
				continue
			}
			url, err := h.links.ResolveURL(ctx, res.FileKey)
			if err != nil {
				h.logger.Warn("resolve resource url", zap.String("resource_id", res.ID.String()), zap.Error(err))
				continue
			}
			res.URL = url
		}
	}
	if sections == nil {
		sections = []models.Section{}
	}
	response.OK(c, sections)
}

// loadForCaller parses :id and loads the session, writing the error response when it cannot be served.
func (h *Handler) loadForCaller(c *gin.Context) (*models.Session, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return nil, false
	}
	s, err := h.store.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "session not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error("get session", zap.String("session_id", id.String()), zap.Error(err))
		response.Internal(c, "failed to load session")
		return nil, false
	}
	if !middleware.IsAdmin(c) && !s.HasParticipant(middleware.UserID(c)) {
		response.Forbidden(c, "not a participant of this session")
		return nil, false
	}
	return s, true
}
