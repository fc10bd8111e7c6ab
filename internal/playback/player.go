package playback

import (
	"errors"
	"sync"
	"time"
)

// ErrAutoplayBlocked mimics a browser refusing play() without a user gesture.
var ErrAutoplayBlocked = errors.New("playback requires a user gesture")

// SimulatedPlayer is a clock-driven Player for terminals and tests.
type SimulatedPlayer struct {
	mu        sync.Mutex
	duration  float64
	base      float64
	startedAt time.Time
	playing   bool
	gestured  bool
	blockAuto bool
	now       func() time.Time
}

// NewSimulatedPlayer creates a paused player at 0. now may be nil for time.Now.
func NewSimulatedPlayer(duration float64, now func() time.Time) *SimulatedPlayer {
	if now == nil {
		now = time.Now
	}
	return &SimulatedPlayer{duration: duration, now: now}
}

// BlockAutoplay makes Play fail until Gesture is called.
func (p *SimulatedPlayer) BlockAutoplay() {
	p.mu.Lock()
	p.blockAuto = true
	p.mu.Unlock()
}

// Gesture records a user interaction, lifting the autoplay block.
func (p *SimulatedPlayer) Gesture() {
	p.mu.Lock()
	p.gestured = true
	p.mu.Unlock()
}

// Load swaps in new media and resets to a paused start.
func (p *SimulatedPlayer) Load(duration float64) {
	p.mu.Lock()
	p.duration = duration
	p.base = 0
	p.playing = false
	p.mu.Unlock()
}

// CurrentTime implements Player.
func (p *SimulatedPlayer) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentLocked()
}

func (p *SimulatedPlayer) currentLocked() float64 {
	if !p.playing {
		return p.base
	}
	t := p.base + p.now().Sub(p.startedAt).Seconds()
	if p.duration > 0 && t > p.duration {
		return p.duration
	}
	return t
}

// Duration implements Player.
func (p *SimulatedPlayer) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

// Paused reports whether playback is stopped.
func (p *SimulatedPlayer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.playing
}

// SetCurrentTime implements Player.
func (p *SimulatedPlayer) SetCurrentTime(t float64) {
	p.mu.Lock()
	p.base = t
	p.startedAt = p.now()
	p.mu.Unlock()
}

// Play implements Player.
func (p *SimulatedPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.blockAuto && !p.gestured {
		return ErrAutoplayBlocked
	}
	if !p.playing {
		p.startedAt = p.now()
		p.playing = true
	}
	return nil
}

// Pause implements Player.
func (p *SimulatedPlayer) Pause() {
	p.mu.Lock()
	p.base = p.currentLocked()
	p.playing = false
	p.mu.Unlock()
}
