package playback

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/studyroom/internal/models"
	"github.com/learnhub/studyroom/internal/protocol"
)

type emitted struct {
	event   string
	payload models.PlaybackEvent
}

type recordingEmitter struct {
	events []emitted
	err    error
}

func (e *recordingEmitter) Emit(event string, payload interface{}) error {
	ev, _ := payload.(models.PlaybackEvent)
	e.events = append(e.events, emitted{event: event, payload: ev})
	return e.err
}

// fakePlayer behaves like a media element whose play/pause/seeked listeners
// are wired straight back to the relay.
type fakePlayer struct {
	t        float64
	duration float64
	playing  bool
	playErr  error

	onPlay  func()
	onPause func()
	onSeek  func(float64)
}

func (p *fakePlayer) CurrentTime() float64 { return p.t }
func (p *fakePlayer) Duration() float64    { return p.duration }

func (p *fakePlayer) SetCurrentTime(t float64) {
	p.t = t
	if p.onSeek != nil {
		p.onSeek(t)
	}
}

func (p *fakePlayer) Play() error {
	if p.playErr != nil {
		return p.playErr
	}
	p.playing = true
	if p.onPlay != nil {
		p.onPlay()
	}
	return nil
}

func (p *fakePlayer) Pause() {
	p.playing = false
	if p.onPause != nil {
		p.onPause()
	}
}

func wired(sessionID uuid.UUID, duration float64) (*Relay, *fakePlayer, *recordingEmitter) {
	p := &fakePlayer{duration: duration}
	em := &recordingEmitter{}
	r := NewRelay(sessionID, p, em, nil)
	p.onPlay = func() { _ = r.OnLocalPlay() }
	p.onPause = func() { _ = r.OnLocalPause() }
	p.onSeek = func(t float64) { _ = r.OnLocalSeekCommitted(t) }
	return r, p, em
}

func TestRemoteEventForOtherSessionIsIgnored(t *testing.T) {
	r, p, em := wired(uuid.New(), 100)
	p.t = 7

	r.OnRemoteEvent(models.PlaybackEvent{Kind: models.PlaybackPlay, CurrentTime: 50, SessionID: uuid.New()})

	assert.Equal(t, 7.0, p.t)
	assert.False(t, p.playing)
	assert.Empty(t, em.events)
}

func TestRemotePlayAppliesWithoutEcho(t *testing.T) {
	session := uuid.New()
	pa := &fakePlayer{t: 12.5, duration: 100}
	emA := &recordingEmitter{}
	a := NewRelay(session, pa, emA, nil)
	b, pb, emB := wired(session, 100)

	require.NoError(t, a.Play())
	require.Len(t, emA.events, 1)
	sent := emA.events[0]
	assert.Equal(t, protocol.EventVideoPlay, sent.event)
	assert.Equal(t, 12.5, sent.payload.CurrentTime)

	b.OnRemoteEvent(sent.payload)

	assert.Equal(t, 12.5, pb.t)
	assert.True(t, pb.playing)
	assert.Empty(t, emB.events)
	assert.Equal(t, ModeLocal, b.Mode())
}

func TestRemotePause(t *testing.T) {
	session := uuid.New()
	r, p, em := wired(session, 100)
	p.playing = true

	r.OnRemoteEvent(models.PlaybackEvent{Kind: models.PlaybackPause, CurrentTime: 30, SessionID: session})

	assert.Equal(t, 30.0, p.t)
	assert.False(t, p.playing)
	assert.Empty(t, em.events)
}

func TestRemoteSeekKeepsPlayState(t *testing.T) {
	session := uuid.New()
	r, p, _ := wired(session, 100)
	p.playing = true

	r.OnRemoteEvent(models.PlaybackEvent{Kind: models.PlaybackSeek, CurrentTime: 42, SessionID: session})

	assert.Equal(t, 42.0, p.t)
	assert.True(t, p.playing)
}

func TestSeekIsIdempotent(t *testing.T) {
	session := uuid.New()
	ev := models.PlaybackEvent{Kind: models.PlaybackSeek, CurrentTime: 33, SessionID: session}

	once, p1, _ := wired(session, 100)
	once.OnRemoteEvent(ev)

	twice, p2, _ := wired(session, 100)
	twice.OnRemoteEvent(ev)
	twice.OnRemoteEvent(ev)

	assert.Equal(t, p1.t, p2.t)
	assert.Equal(t, p1.playing, p2.playing)
}

func TestSeekEmitsClampedTime(t *testing.T) {
	session := uuid.New()
	r, _, em := wired(session, 100)

	require.NoError(t, r.OnLocalSeekCommitted(250))
	require.NoError(t, r.OnLocalSeekCommitted(-4))

	require.Len(t, em.events, 2)
	assert.Equal(t, protocol.EventVideoSeek, em.events[0].event)
	assert.Equal(t, 100.0, em.events[0].payload.CurrentTime)
	assert.Equal(t, 0.0, em.events[1].payload.CurrentTime)
	assert.Equal(t, session, em.events[0].payload.SessionID)
}

func TestSkipForwardClampsToDuration(t *testing.T) {
	p := &fakePlayer{t: 95, duration: 100}
	em := &recordingEmitter{}
	r := NewRelay(uuid.New(), p, em, nil)

	require.NoError(t, r.SkipForward())

	assert.Equal(t, 100.0, p.t)
	require.Len(t, em.events, 1)
	assert.Equal(t, 100.0, em.events[0].payload.CurrentTime)
}

func TestSkipBackwardClampsToZero(t *testing.T) {
	p := &fakePlayer{t: 4, duration: 100}
	em := &recordingEmitter{}
	r := NewRelay(uuid.New(), p, em, nil)

	require.NoError(t, r.SkipBackward())

	assert.Equal(t, 0.0, p.t)
	assert.Equal(t, 0.0, em.events[0].payload.CurrentTime)
}

func TestScrubDoesNotEmit(t *testing.T) {
	p := &fakePlayer{duration: 100}
	em := &recordingEmitter{}
	r := NewRelay(uuid.New(), p, em, nil)

	r.Scrub(10)
	r.Scrub(20)
	assert.Empty(t, em.events)

	require.NoError(t, r.CommitSeek(25))
	require.Len(t, em.events, 1)
	assert.Equal(t, 25.0, em.events[0].payload.CurrentTime)
}

func TestRemotePlayRejectedLeavesPaused(t *testing.T) {
	session := uuid.New()
	r, p, em := wired(session, 100)
	p.playErr = errors.New("NotAllowedError")

	r.OnRemoteEvent(models.PlaybackEvent{Kind: models.PlaybackPlay, CurrentTime: 8, SessionID: session})

	assert.Equal(t, 8.0, p.t)
	assert.False(t, p.playing)
	assert.Empty(t, em.events)
}

func TestEmitErrorIsReturned(t *testing.T) {
	p := &fakePlayer{duration: 100}
	em := &recordingEmitter{err: errors.New("relay connection closed")}
	r := NewRelay(uuid.New(), p, em, nil)

	assert.Error(t, r.OnLocalPause())
}

func TestHandleRelayDecodesEvent(t *testing.T) {
	session := uuid.New()
	r, p, _ := wired(session, 100)
	data, err := json.Marshal(map[string]interface{}{"sessionId": session, "currentTime": 61.5})
	require.NoError(t, err)

	r.HandleRelay(protocol.EventVideoPlay, data)

	assert.Equal(t, 61.5, p.t)
	assert.True(t, p.playing)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-1, 10))
	assert.Equal(t, 10.0, Clamp(11, 10))
	assert.Equal(t, 5.0, Clamp(5, 10))
	assert.Equal(t, 500.0, Clamp(500, 0))
}

func TestSimulatedPlayerAdvancesWithClock(t *testing.T) {
	now := time.Unix(1000, 0)
	p := NewSimulatedPlayer(60, func() time.Time { return now })

	p.SetCurrentTime(10)
	require.NoError(t, p.Play())
	now = now.Add(5 * time.Second)
	assert.Equal(t, 15.0, p.CurrentTime())

	p.Pause()
	now = now.Add(5 * time.Second)
	assert.Equal(t, 15.0, p.CurrentTime())
	assert.True(t, p.Paused())

	require.NoError(t, p.Play())
	now = now.Add(time.Minute)
	assert.Equal(t, 60.0, p.CurrentTime())
}

func TestSimulatedPlayerAutoplayBlock(t *testing.T) {
	p := NewSimulatedPlayer(60, nil)
	p.BlockAutoplay()

	assert.ErrorIs(t, p.Play(), ErrAutoplayBlocked)
	p.Gesture()
	assert.NoError(t, p.Play())
}

func TestSimulatedPlayerLoadResets(t *testing.T) {
	p := NewSimulatedPlayer(60, nil)
	p.SetCurrentTime(30)
	require.NoError(t, p.Play())

	p.Load(120)

	assert.True(t, p.Paused())
	assert.Equal(t, 0.0, p.CurrentTime())
	assert.Equal(t, 120.0, p.Duration())
}

// gatedPlayer parks the first SetCurrentTime until release is closed.
type gatedPlayer struct {
	mu      sync.Mutex
	t       float64
	playing bool
	entered chan struct{}
	release chan struct{}
	gated   bool
}

func (p *gatedPlayer) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.t
}

func (p *gatedPlayer) Duration() float64 { return 100 }

func (p *gatedPlayer) SetCurrentTime(t float64) {
	p.mu.Lock()
	first := !p.gated
	p.gated = true
	p.mu.Unlock()
	if first {
		close(p.entered)
		<-p.release
	}
	p.mu.Lock()
	p.t = t
	p.mu.Unlock()
}

func (p *gatedPlayer) Play() error {
	p.mu.Lock()
	p.playing = true
	p.mu.Unlock()
	return nil
}

func (p *gatedPlayer) Pause() {
	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
}

type lockedEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (e *lockedEmitter) Emit(event string, payload interface{}) error {
	ev, _ := payload.(models.PlaybackEvent)
	e.mu.Lock()
	e.events = append(e.events, emitted{event: event, payload: ev})
	e.mu.Unlock()
	return nil
}

func (e *lockedEmitter) snapshot() []emitted {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]emitted(nil), e.events...)
}

func TestLocalCommandDuringRemoteApplyIsStillEmitted(t *testing.T) {
	session := uuid.New()
	p := &gatedPlayer{entered: make(chan struct{}), release: make(chan struct{})}
	em := &lockedEmitter{}
	r := NewRelay(session, p, em, nil)

	applied := make(chan struct{})
	go func() {
		r.OnRemoteEvent(models.PlaybackEvent{Kind: models.PlaybackSeek, CurrentTime: 5, SessionID: session})
		close(applied)
	}()
	<-p.entered

	paused := make(chan error, 1)
	go func() { paused <- r.Pause() }()

	select {
	case <-paused:
		t.Fatal("local pause ran while a remote event was being applied")
	case <-time.After(50 * time.Millisecond):
	}
	close(p.release)
	<-applied

	select {
	case err := <-paused:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("local pause never ran")
	}
	events := em.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, protocol.EventVideoPause, events[0].event)
	assert.Equal(t, 5.0, events[0].payload.CurrentTime)
	assert.Equal(t, ModeLocal, r.Mode())
}
