package presence

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/studyroom/internal/middleware"
	"github.com/learnhub/studyroom/internal/models"
)

type fakeLog struct {
	entries []models.PresenceEntry
	err     error
}

func (f fakeLog) ListBySession(context.Context, uuid.UUID) ([]models.PresenceEntry, error) {
	return f.entries, f.err
}

type allow bool

func (a allow) IsParticipant(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return bool(a), nil
}

func get(h *Handler, path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, uuid.New())
		c.Next()
	})
	r.GET("/api/sessions/:id/presence", h.List)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestListPresence(t *testing.T) {
	session := uuid.New()
	log := fakeLog{entries: []models.PresenceEntry{{SessionID: session, UserID: uuid.New(), JoinedAt: time.Now()}}}

	w := get(NewHandler(log, allow(true)), "/api/sessions/"+session.String()+"/presence")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data struct {
			Presence []models.PresenceEntry `json:"presence"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data.Presence, 1)
}

func TestListPresenceGuards(t *testing.T) {
	session := uuid.New().String()

	assert.Equal(t, http.StatusForbidden, get(NewHandler(fakeLog{}, allow(false)), "/api/sessions/"+session+"/presence").Code)
	assert.Equal(t, http.StatusBadRequest, get(NewHandler(fakeLog{}, allow(true)), "/api/sessions/nope/presence").Code)
	assert.Equal(t, http.StatusInternalServerError, get(NewHandler(fakeLog{err: errors.New("db")}, allow(true)), "/api/sessions/"+session+"/presence").Code)
}
