package sessions

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/studyroom/internal/auth"
	"github.com/learnhub/studyroom/internal/middleware"
	"github.com/learnhub/studyroom/internal/models"
	"github.com/learnhub/studyroom/pkg/storage"
)

type memStore struct {
	sessions map[uuid.UUID]models.Session
	sections []models.Section
}

func (m *memStore) Create(_ context.Context, s *models.Session) error {
	s.ID = uuid.New()
	m.sessions[s.ID] = *s
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *memStore) ListSections(context.Context, models.ContentType, uuid.UUID) ([]models.Section, error) {
	return m.sections, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func router(h *Handler, userID uuid.UUID, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Set(middleware.ContextUserRole, role)
		c.Next()
	})
	r.POST("/api/sessions", h.Create)
	r.GET("/api/sessions/:id", h.GetByID)
	r.GET("/api/sessions/:id/sections", h.ListSections)
	return r
}

func do(r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func seeded() (*memStore, models.Session) {
	s := models.Session{ID: uuid.New(), HostID: uuid.New(), GuestID: uuid.New(), ContentType: models.ContentCourse, ContentID: uuid.New()}
	sectionID := uuid.New()
	store := &memStore{
		sessions: map[uuid.UUID]models.Session{s.ID: s},
		sections: []models.Section{{ID: sectionID, Title: "Intro", Resources: []models.Resource{
			{ID: uuid.New(), SectionID: sectionID, Title: "Welcome", Kind: models.ResourceVideo, FileKey: "courses/intro/welcome video.mp4"},
			{ID: uuid.New(), SectionID: sectionID, Title: "Docs", Kind: models.ResourceLink, URL: "https://go.dev"},
		}}},
	}
	return store, s
}

func TestGetByIDParticipantOnly(t *testing.T) {
	store, s := seeded()
	h := NewHandler(store, nil, nil)

	w, env := do(router(h, s.GuestID, auth.RoleStudent), http.MethodGet, "/api/sessions/"+s.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	w, _ = do(router(h, uuid.New(), auth.RoleStudent), http.MethodGet, "/api/sessions/"+s.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = do(router(h, uuid.New(), auth.RoleAdmin), http.MethodGet, "/api/sessions/"+s.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetByIDErrors(t *testing.T) {
	store, s := seeded()
	r := router(NewHandler(store, nil, nil), s.HostID, auth.RoleTeacher)

	w, _ := do(r, http.MethodGet, "/api/sessions/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(r, http.MethodGet, "/api/sessions/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListSectionsResolvesLinks(t *testing.T) {
	store, s := seeded()
	h := NewHandler(store, storage.StaticLinks{BaseURL: "https://cdn.example.com/assets/"}, nil)

	w, env := do(router(h, s.HostID, auth.RoleTeacher), http.MethodGet, "/api/sessions/"+s.ID.String()+"/sections", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var sections []models.Section
	require.NoError(t, json.Unmarshal(env.Data, &sections))
	require.Len(t, sections, 1)
	assert.Equal(t, "https://cdn.example.com/assets/courses/intro/welcome%20video.mp4", sections[0].Resources[0].URL)
	assert.Equal(t, "https://go.dev", sections[0].Resources[1].URL)
}

func TestCreateValidates(t *testing.T) {
	store, _ := seeded()
	r := router(NewHandler(store, nil, nil), uuid.New(), auth.RoleAdmin)
	same := uuid.New()

	w, _ := do(r, http.MethodPost, "/api/sessions", map[string]interface{}{
		"hostId": same, "guestId": same, "contentType": "course", "contentId": uuid.New(),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(r, http.MethodPost, "/api/sessions", map[string]interface{}{
		"hostId": uuid.New(), "guestId": uuid.New(), "contentType": "podcast", "contentId": uuid.New(),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := do(r, http.MethodPost, "/api/sessions", map[string]interface{}{
		"hostId": uuid.New(), "guestId": uuid.New(), "contentType": "formation", "contentId": uuid.New(),
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	var created models.Session
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Len(t, store.sessions, 2)
}
