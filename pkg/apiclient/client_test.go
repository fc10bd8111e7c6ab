package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, mutate ...func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := Config{BaseURL: srv.URL, Tokens: TokenFunc(func() string { return "tok" })}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestGetDecodesDataAndSendsBearer(t *testing.T) {
	sessionID := uuid.New()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/sessions/"+sessionID.String(), r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"id": sessionID, "contentType": "course"},
		})
	})

	s, err := c.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, sessionID, s.ID)
	assert.EqualValues(t, "course", s.ContentType)
}

func TestSuccessFalseIsAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": false, "message": "nope"})
	})

	err := c.Get(context.Background(), "/api/x", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "nope", apiErr.Message)
	assert.False(t, IsNetwork(err))
}

func TestUnauthorizedRunsHook(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "error": "invalid or expired token"})
	}, func(cfg *Config) {
		cfg.OnUnauthorized = func() { atomic.AddInt32(&calls, 1) }
	})

	err := c.Get(context.Background(), "/api/x", nil)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Contains(t, err.Error(), "invalid or expired token")
}

func TestTimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, func(cfg *Config) {
		cfg.Timeout = 50 * time.Millisecond
	})
	defer close(release)

	err := c.Get(context.Background(), "/api/slow", nil)
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestConnectionRefusedIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url})
	require.NoError(t, err)

	err = c.Get(context.Background(), "/api/x", nil)
	assert.True(t, IsNetwork(err))
}

func TestPostMessageSendsContent(t *testing.T) {
	sessionID := uuid.New()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["content"])
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"id": uuid.New(), "sessionId": sessionID, "content": body["content"]},
		})
	})

	m, err := c.PostMessage(context.Background(), sessionID, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", m.Content)
	assert.Equal(t, sessionID, m.SessionID)
}

func TestPostMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Complaint", r.FormValue("subject"))
		f, hdr, err := r.FormFile("attachment")
		require.NoError(t, err)
		defer f.Close()
		raw, _ := io.ReadAll(f)
		assert.Equal(t, "notes.txt", hdr.Filename)
		assert.Equal(t, "content", string(raw))
		writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true})
	})

	err := c.PostMultipart(context.Background(), "/api/complaints",
		map[string]string{"subject": "Complaint"},
		[]File{{Field: "attachment", Filename: "notes.txt", Content: strings.NewReader("content")}},
		nil)
	require.NoError(t, err)
}

func TestNoContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	assert.NoError(t, c.Delete(context.Background(), "/api/x", nil))
}
