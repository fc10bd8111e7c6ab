package messages

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/studyroom/internal/middleware"
	"github.com/learnhub/studyroom/internal/models"
	"github.com/learnhub/studyroom/pkg/response"
)

// MaxContentLength bounds a single chat message, in characters.
const MaxContentLength = 2000

// Store is the persistence the handler needs; *Repository implements it.
type Store interface {
	Create(ctx context.Context, m *models.ChatMessage) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.ChatMessage, error)
}

// ParticipantChecker gates access to a session's conversation.
type ParticipantChecker interface {
	IsParticipant(ctx context.Context, sessionID, userID uuid.UUID) (bool, error)
}

// CreateRequest is the body for POST /api/sessions/:id/messages.
type CreateRequest struct {
	Content string `json:"content" binding:"required"`
}

// Handler serves session chat history.
type Handler struct {
	store  Store
	authz  ParticipantChecker
	logger *zap.Logger
}

// NewHandler creates a messages handler.
func NewHandler(store Store, authz ParticipantChecker, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, authz: authz, logger: logger}
}

// List handles GET /api/sessions/:id/messages.
func (h *Handler) List(c *gin.Context) {
	sessionID, ok := h.authorize(c)
	if !ok {
		return
	}
	list, err := h.store.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("list messages", zap.String("session_id", sessionID.String()), zap.Error(err))
		response.Internal(c, "failed to list messages")
		return
	}
	response.OK(c, list)
}

// Create handles POST /api/sessions/:id/messages. Peers learn about the message over the relay, not from here.
func (h *Handler) Create(c *gin.Context) {
	sessionID, ok := h.authorize(c)
	if !ok {
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		response.BadRequest(c, "content must not be blank")
		return
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		response.BadRequest(c, "content too long")
		return
	}
	name, _ := c.Get(middleware.ContextUserName)
	sender, _ := name.(string)
	m := &models.ChatMessage{
		SessionID: sessionID,
		SenderID:  middleware.UserID(c),
		Sender:    sender,
		Content:   content,
	}
	if err := h.store.Create(c.Request.Context(), m); err != nil {
		h.logger.Error("create message", zap.String("session_id", sessionID.String()), zap.Error(err))
		response.Internal(c, "failed to save message")
		return
	}
	response.Created(c, m)
}

func (h *Handler) authorize(c *gin.Context) (uuid.UUID, bool) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return uuid.Nil, false
	}
	ok, err := h.authz.IsParticipant(c.Request.Context(), sessionID, middleware.UserID(c))
	if err != nil {
		h.logger.Error("check participant", zap.String("session_id", sessionID.String()), zap.Error(err))
		response.Internal(c, "failed to load session")
		return uuid.Nil, false
	}
	if !ok {
		response.Forbidden(c, "not a participant of this session")
		return uuid.Nil, false
	}
	return sessionID, true
}
