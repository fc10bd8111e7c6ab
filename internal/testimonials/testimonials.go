// Package testimonials submits learner reviews. A submission that cannot
// reach the server is kept locally as pendingSync instead of being reported
// as saved.
package testimonials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/studyroom/internal/models"
	"github.com/learnhub/studyroom/pkg/apiclient"
)

const (
	MinRating = 1
	MaxRating = 5
)

var ErrInvalidTestimonial = errors.New("invalid testimonial")

// API submits a testimonial to the server.
type API interface {
	SubmitTestimonial(ctx context.Context, t models.Testimonial) (*models.Testimonial, error)
}

// Service submits testimonials and holds the ones awaiting sync.
type Service struct {
	api    API
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	pending []models.Testimonial
}

// NewService creates a testimonial service.
func NewService(api API, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{api: api, logger: logger, now: time.Now}
}

func validate(t models.Testimonial) error {
	if strings.TrimSpace(t.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidTestimonial)
	}
	if t.Rating < MinRating || t.Rating > MaxRating {
		return fmt.Errorf("%w: rating must be between %d and %d", ErrInvalidTestimonial, MinRating, MaxRating)
	}
	return nil
}

// Submit posts t. On a network failure the record is queued with status pendingSync
// and returned with a nil error; callers must check Status. Any other failure is returned.
func (s *Service) Submit(ctx context.Context, t models.Testimonial) (*models.Testimonial, error) {
	if err := validate(t); err != nil {
		return nil, err
	}
	t.Content = strings.TrimSpace(t.Content)

	saved, err := s.api.SubmitTestimonial(ctx, t)
	if err == nil {
		saved.Status = models.TestimonialSynced
		return saved, nil
	}
	if !apiclient.IsNetwork(err) {
		return nil, err
	}

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	t.Status = models.TestimonialPendingSync
	s.mu.Lock()
	s.pending = append(s.pending, t)
	s.mu.Unlock()
	s.logger.Warn("testimonial kept for later sync", zap.String("local_id", t.ID.String()), zap.Error(err))
	return &t, nil
}

// Pending returns the records not yet accepted by the server.
func (s *Service) Pending() []models.Testimonial {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Testimonial(nil), s.pending...)
}

// RetryPending resubmits every pending record and returns those now synced.
// Records that fail again with a network error stay pending; other failures drop the record.
func (s *Service) RetryPending(ctx context.Context) ([]models.Testimonial, error) {
	s.mu.Lock()
	queue := s.pending
	s.pending = nil
	s.mu.Unlock()

	var synced, still []models.Testimonial
	var errs []error
	for _, t := range queue {
		saved, err := s.api.SubmitTestimonial(ctx, t)
		switch {
		case err == nil:
			saved.Status = models.TestimonialSynced
			synced = append(synced, *saved)
		case apiclient.IsNetwork(err):
			still = append(still, t)
		default:
			s.logger.Warn("testimonial rejected on retry", zap.String("local_id", t.ID.String()), zap.Error(err))
			errs = append(errs, err)
		}
	}

	s.mu.Lock()
	s.pending = append(still, s.pending...)
	s.mu.Unlock()
	return synced, errors.Join(errs...)
}
