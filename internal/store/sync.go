package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/learnhub/studyroom/internal/models"
)

// DefaultPollInterval is how often ProfileSync refreshes the profile.
const DefaultPollInterval = 30 * time.Second

// ProfileAPI is the subset of the REST client ProfileSync uses.
type ProfileAPI interface {
	GetTeacherProfile(ctx context.Context) (*models.TeacherProfile, error)
	UpdateTeacherProfile(ctx context.Context, p models.TeacherProfile) (*models.TeacherProfile, error)
}

// ProfileSync keeps the cached profile fresh. It is the only component holding the Writer
// for profile data, so polling and explicit updates are serialised through it.
type ProfileSync struct {
	api      ProfileAPI
	store    *Store
	writer   *Writer
	interval time.Duration
	logger   *zap.Logger
}

// NewProfileSync creates a poller. interval <= 0 means DefaultPollInterval.
func NewProfileSync(api ProfileAPI, s *Store, w *Writer, interval time.Duration, logger *zap.Logger) *ProfileSync {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileSync{api: api, store: s, writer: w, interval: interval, logger: logger}
}

// Refresh fetches the profile once. A result that raced a newer write is discarded.
func (p *ProfileSync) Refresh(ctx context.Context) error {
	seen := p.store.Revision()
	profile, err := p.api.GetTeacherProfile(ctx)
	if err != nil {
		return err
	}
	written, err := p.writer.SetProfileIfUnchanged(seen, *profile)
	if err != nil {
		return err
	}
	if !written {
		p.logger.Debug("stale profile poll discarded", zap.Uint64("seen_revision", seen))
	}
	return nil
}

// Update saves edits to the server and caches the server's copy.
func (p *ProfileSync) Update(ctx context.Context, edited models.TeacherProfile) (*models.TeacherProfile, error) {
	saved, err := p.api.UpdateTeacherProfile(ctx, edited)
	if err != nil {
		return nil, err
	}
	if err := p.writer.SetProfile(*saved); err != nil {
		return saved, err
	}
	return saved, nil
}

// Run refreshes immediately and then every interval until ctx is done.
func (p *ProfileSync) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		if err := p.Refresh(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("profile refresh failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
