package protocol

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/studyroom/internal/models"
)

func TestPlaybackEventNamesRoundTrip(t *testing.T) {
	for _, kind := range []models.PlaybackKind{models.PlaybackPlay, models.PlaybackPause, models.PlaybackSeek} {
		name, err := PlaybackEventName(kind)
		require.NoError(t, err)
		got, ok := PlaybackKindForEvent(name)
		require.True(t, ok)
		assert.Equal(t, kind, got)
	}

	_, err := PlaybackEventName("rewind")
	assert.Error(t, err)
	_, ok := PlaybackKindForEvent(EventSendMessage)
	assert.False(t, ok)
}

func TestSessionOf(t *testing.T) {
	id := uuid.New()
	got, err := SessionOf(json.RawMessage(`{"sessionId":"` + id.String() + `","currentTime":3}`))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = SessionOf(json.RawMessage(`{"currentTime":3}`))
	assert.ErrorIs(t, err, ErrMissingSession)

	_, err = SessionOf(nil)
	assert.ErrorIs(t, err, ErrMissingSession)

	_, err = SessionOf(json.RawMessage(`[`))
	assert.Error(t, err)
}

func TestDecodePlaybackTakesKindFromEvent(t *testing.T) {
	id := uuid.New()
	ev, err := DecodePlayback(EventVideoSeek, json.RawMessage(`{"kind":"play","currentTime":42.5,"sessionId":"`+id.String()+`"}`))
	require.NoError(t, err)
	assert.Equal(t, models.PlaybackSeek, ev.Kind)
	assert.Equal(t, 42.5, ev.CurrentTime)
	assert.Equal(t, id, ev.SessionID)
}
