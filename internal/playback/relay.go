// Package playback keeps two viewers' video positions loosely in step by
// relaying play, pause and seek actions over the session channel.
//
// There is no clock reconciliation: a receiver snaps to whatever time the
// sender reported, and the last event to arrive wins.
package playback

import (
	"encoding/json"
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/studyroom/internal/models"
	"github.com/learnhub/studyroom/internal/protocol"
)

// SkipStep is how far the skip buttons move, in seconds.
const SkipStep = 10.0

// Player is the local media element.
type Player interface {
	CurrentTime() float64
	// Duration is the media length in seconds; <= 0 when not known yet.
	Duration() float64
	SetCurrentTime(t float64)
	// Play may be refused, e.g. by an autoplay policy.
	Play() error
	Pause()
}

// Emitter sends an event on the session channel.
type Emitter interface {
	Emit(event string, payload interface{}) error
}

// Mode tags who is driving the player right now.
type Mode int32

const (
	// ModeLocal: player changes come from this viewer and are emitted.
	ModeLocal Mode = iota
	// ModeApplyingRemote: a peer's event is being applied; player callbacks must not emit.
	ModeApplyingRemote
)

func (m Mode) String() string {
	if m == ModeApplyingRemote {
		return "applying-remote"
	}
	return "local"
}

// Relay binds a Player to the session channel.
type Relay struct {
	sessionID uuid.UUID
	player    Player
	emitter   Emitter
	logger    *zap.Logger

	mode atomic.Int32
	// mu serialises local commands with remote application, so a command is never
	// mistaken for the echo of a remote event.
	mu sync.Mutex
}

// NewRelay creates a playback relay for sessionID.
func NewRelay(sessionID uuid.UUID, player Player, emitter Emitter, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{sessionID: sessionID, player: player, emitter: emitter, logger: logger}
}

// Mode reports the current state tag.
func (r *Relay) Mode() Mode {
	return Mode(r.mode.Load())
}

// Clamp bounds t to [0, duration]. An unknown duration (<= 0) only bounds below.
func Clamp(t, duration float64) float64 {
	if math.IsNaN(t) || t < 0 {
		return 0
	}
	if duration > 0 && t > duration {
		return duration
	}
	return t
}

// OnLocalPlay emits video-play with the player's current time.
// The OnLocal* handlers are for the player's own event callbacks and take no lock;
// during a remote apply they emit nothing.
func (r *Relay) OnLocalPlay() error {
	return r.emitLocal(models.PlaybackPlay, r.player.CurrentTime())
}

// OnLocalPause emits video-pause with the player's current time.
func (r *Relay) OnLocalPause() error {
	return r.emitLocal(models.PlaybackPause, r.player.CurrentTime())
}

// OnLocalSeekCommitted emits video-seek once the viewer releases the scrubber.
func (r *Relay) OnLocalSeekCommitted(t float64) error {
	return r.emitLocal(models.PlaybackSeek, Clamp(t, r.player.Duration()))
}

// Play starts the local player and announces it.
func (r *Relay) Play() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.player.Play(); err != nil {
		return err
	}
	return r.OnLocalPlay()
}

// Pause stops the local player and announces it.
func (r *Relay) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.player.Pause()
	return r.OnLocalPause()
}

// Scrub moves the local player while the viewer drags; nothing is emitted until CommitSeek.
func (r *Relay) Scrub(t float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.player.SetCurrentTime(Clamp(t, r.player.Duration()))
}

// CommitSeek applies the final scrub position and emits it.
func (r *Relay) CommitSeek(t float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seekLocked(t)
}

// SkipForward jumps SkipStep seconds ahead, clamped to the duration.
func (r *Relay) SkipForward() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seekLocked(r.player.CurrentTime() + SkipStep)
}

// SkipBackward jumps SkipStep seconds back, clamped at zero.
func (r *Relay) SkipBackward() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seekLocked(r.player.CurrentTime() - SkipStep)
}

func (r *Relay) seekLocked(t float64) error {
	t = Clamp(t, r.player.Duration())
	r.player.SetCurrentTime(t)
	return r.OnLocalSeekCommitted(t)
}

func (r *Relay) emitLocal(kind models.PlaybackKind, t float64) error {
	if r.Mode() == ModeApplyingRemote {
		return nil
	}
	event, err := protocol.PlaybackEventName(kind)
	if err != nil {
		return err
	}
	return r.emitter.Emit(event, models.PlaybackEvent{Kind: kind, CurrentTime: t, SessionID: r.sessionID})
}

// OnRemoteEvent applies a peer's event unconditionally when it targets this session.
// Events for other sessions are ignored.
func (r *Relay) OnRemoteEvent(ev models.PlaybackEvent) {
	if ev.SessionID != r.sessionID {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode.Store(int32(ModeApplyingRemote))
	defer r.mode.Store(int32(ModeLocal))

	r.player.SetCurrentTime(ev.CurrentTime)
	switch ev.Kind {
	case models.PlaybackPlay:
		if err := r.player.Play(); err != nil {
			r.logger.Warn("remote play rejected by player", zap.Float64("current_time", ev.CurrentTime), zap.Error(err))
			r.player.Pause()
		}
	case models.PlaybackPause:
		r.player.Pause()
	case models.PlaybackSeek:
	default:
		r.logger.Warn("unknown playback kind", zap.String("kind", string(ev.Kind)))
	}
}

// HandleRelay decodes a video-* event from the channel and applies it.
func (r *Relay) HandleRelay(event string, data json.RawMessage) {
	ev, err := protocol.DecodePlayback(event, data)
	if err != nil {
		r.logger.Warn("bad playback payload", zap.String("event", event), zap.Error(err))
		return
	}
	r.OnRemoteEvent(ev)
}
