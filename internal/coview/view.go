// Package coview composes one co-viewing session: content outline, relay
// membership, synchronized playback and chat.
package coview

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/studyroom/internal/chat"
	"github.com/learnhub/studyroom/internal/models"
	"github.com/learnhub/studyroom/internal/playback"
	"github.com/learnhub/studyroom/internal/protocol"
	"github.com/learnhub/studyroom/internal/relay"
)

// API is what the view needs from the REST client.
type API interface {
	GetSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error)
	ListSections(ctx context.Context, sessionID uuid.UUID) ([]models.Section, error)
	chat.MessageAPI
}

// MediaPlayer is a Player that can swap media.
type MediaPlayer interface {
	playback.Player
	Load(duration float64)
}

// Options for Open.
type Options struct {
	RelayURL string
	Token    string
	Player   MediaPlayer
	Logger   *zap.Logger
}

// View is a mounted session view. Close it to leave the session.
type View struct {
	session  models.Session
	sections []models.Section
	member   *relay.Membership
	playback *playback.Relay
	chat     *chat.Chat
	player   MediaPlayer
	logger   *zap.Logger

	mu           sync.Mutex
	section      int
	resource     int
	onPeerJoined func(protocol.PeerJoinedPayload)
	onRefused    func(protocol.ErrorPayload)
}

// Open loads the session, joins its relay channel and loads chat history.
// A failed outline or history load is logged and leaves that part empty; a failed session
// lookup or relay dial fails the view.
func Open(ctx context.Context, api API, sessionID uuid.UUID, opts Options) (*View, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Player == nil {
		opts.Player = playback.NewSimulatedPlayer(0, nil)
	}
	logger = logger.With(zap.String("session_id", sessionID.String()))

	session, err := api.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	sections, err := api.ListSections(ctx, sessionID)
	if err != nil {
		logger.Warn("load content outline failed", zap.Error(err))
		sections = nil
	}

	v := &View{
		session:  *session,
		sections: sections,
		player:   opts.Player,
		logger:   logger,
	}
	member, err := relay.Open(ctx, opts.RelayURL, opts.Token, sessionID, v.bind(api), logger)
	if err != nil {
		return nil, err
	}
	v.member = member

	v.loadSelected()
	_ = v.chat.LoadHistory(ctx)
	return v, nil
}

func (v *View) bind(api API) func(*relay.Conn) {
	return func(conn *relay.Conn) {
		sessionID := v.session.ID
		v.playback = playback.NewRelay(sessionID, v.player, conn, v.logger)
		v.chat = chat.New(sessionID, api, conn, v.logger)

		for _, event := range []string{protocol.EventVideoPlay, protocol.EventVideoPause, protocol.EventVideoSeek} {
			event := event
			conn.On(event, func(data json.RawMessage) { v.playback.HandleRelay(event, data) })
		}
		conn.On(protocol.EventReceiveMessage, v.chat.HandleRelay)
		conn.On(protocol.EventPeerJoined, v.peerJoined)
		conn.On(protocol.EventError, v.refused)
	}
}

func (v *View) peerJoined(data json.RawMessage) {
	var p protocol.PeerJoinedPayload
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID != v.session.ID {
		return
	}
	v.logger.Info("peer joined", zap.String("user_id", p.UserID.String()), zap.String("name", p.Name))
	v.mu.Lock()
	fn := v.onPeerJoined
	v.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

func (v *View) refused(data json.RawMessage) {
	var p protocol.ErrorPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	v.logger.Warn("relay refused request", zap.String("event", p.Event), zap.String("message", p.Message))
	v.mu.Lock()
	fn := v.onRefused
	v.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

// OnPeerJoined sets the observer for the other participant attaching.
func (v *View) OnPeerJoined(fn func(protocol.PeerJoinedPayload)) {
	v.mu.Lock()
	v.onPeerJoined = fn
	v.mu.Unlock()
}

// OnRefused sets the observer for requests the relay rejected.
func (v *View) OnRefused(fn func(protocol.ErrorPayload)) {
	v.mu.Lock()
	v.onRefused = fn
	v.mu.Unlock()
}

// Session returns the mounted session.
func (v *View) Session() models.Session { return v.session }

// Sections returns the content outline.
func (v *View) Sections() []models.Section { return v.sections }

// Playback returns the playback relay bound to this view's player.
func (v *View) Playback() *playback.Relay { return v.playback }

// Chat returns the session chat.
func (v *View) Chat() *chat.Chat { return v.chat }

// Connected reports whether the relay connection is still up.
func (v *View) Connected() bool {
	return v.member.Conn().State() == relay.StateConnected
}

// Done is closed when the relay connection goes down.
func (v *View) Done() <-chan struct{} {
	return v.member.Conn().Done()
}

// Selected returns the active resource, if the outline has any.
func (v *View) Selected() (models.Resource, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selectedLocked()
}

func (v *View) selectedLocked() (models.Resource, bool) {
	if v.section >= len(v.sections) {
		return models.Resource{}, false
	}
	res := v.sections[v.section].Resources
	if v.resource >= len(res) {
		return models.Resource{}, false
	}
	return res[v.resource], true
}

// SelectSection makes section i active, with its first resource selected.
func (v *View) SelectSection(i int) error {
	return v.SelectResource(i, 0)
}

// SelectResource makes resource j of section i active and loads it into the player.
func (v *View) SelectResource(i, j int) error {
	v.mu.Lock()
	if i < 0 || i >= len(v.sections) {
		v.mu.Unlock()
		return fmt.Errorf("section %d out of range", i)
	}
	if j < 0 || (j >= len(v.sections[i].Resources) && j != 0) {
		v.mu.Unlock()
		return fmt.Errorf("resource %d out of range", j)
	}
	v.section, v.resource = i, j
	v.mu.Unlock()
	v.loadSelected()
	return nil
}

// loadSelected resets the player for the active resource. Selection is local and not relayed.
func (v *View) loadSelected() {
	res, ok := v.Selected()
	if !ok {
		return
	}
	v.player.Load(res.DurationSeconds)
	v.logger.Debug("resource selected", zap.String("resource_id", res.ID.String()), zap.String("title", res.Title))
}

// Close leaves the session by closing the relay connection.
func (v *View) Close() error {
	return v.member.Leave()
}
