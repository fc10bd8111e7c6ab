package testimonials

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/studyroom/internal/models"
	"github.com/learnhub/studyroom/pkg/apiclient"
)

type fakeAPI struct {
	err   error
	calls int
}

func (f *fakeAPI) SubmitTestimonial(_ context.Context, t models.Testimonial) (*models.Testimonial, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	t.ID = uuid.New()
	return &t, nil
}

var offline = &apiclient.NetworkError{Method: "POST", URL: "/api/testimonials", Err: errors.New("connection refused")}

func TestSubmitValidatesWithoutNetwork(t *testing.T) {
	api := &fakeAPI{}
	s := NewService(api, nil)

	_, err := s.Submit(context.Background(), models.Testimonial{Content: "  ", Rating: 4})
	assert.ErrorIs(t, err, ErrInvalidTestimonial)
	_, err = s.Submit(context.Background(), models.Testimonial{Content: "great", Rating: 6})
	assert.ErrorIs(t, err, ErrInvalidTestimonial)
	_, err = s.Submit(context.Background(), models.Testimonial{Content: "great", Rating: 0})
	assert.ErrorIs(t, err, ErrInvalidTestimonial)
	assert.Zero(t, api.calls)
}

func TestSubmitSynced(t *testing.T) {
	s := NewService(&fakeAPI{}, nil)

	got, err := s.Submit(context.Background(), models.Testimonial{Content: "great course", Rating: 5})
	require.NoError(t, err)
	assert.Equal(t, models.TestimonialSynced, got.Status)
	assert.Empty(t, s.Pending())
}

func TestSubmitOfflineIsPending(t *testing.T) {
	s := NewService(&fakeAPI{err: offline}, nil)

	got, err := s.Submit(context.Background(), models.Testimonial{Content: "great course", Rating: 5})
	require.NoError(t, err)
	assert.Equal(t, models.TestimonialPendingSync, got.Status)
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.False(t, got.CreatedAt.IsZero())
	require.Len(t, s.Pending(), 1)
}

func TestSubmitRejectedIsError(t *testing.T) {
	s := NewService(&fakeAPI{err: &apiclient.APIError{Status: 422, Message: "duplicate"}}, nil)

	_, err := s.Submit(context.Background(), models.Testimonial{Content: "great course", Rating: 5})
	assert.Error(t, err)
	assert.Empty(t, s.Pending())
}

func TestRetryPending(t *testing.T) {
	api := &fakeAPI{err: offline}
	s := NewService(api, nil)
	_, err := s.Submit(context.Background(), models.Testimonial{Content: "one", Rating: 3})
	require.NoError(t, err)

	synced, err := s.RetryPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, synced)
	assert.Len(t, s.Pending(), 1)

	api.err = nil
	synced, err = s.RetryPending(context.Background())
	require.NoError(t, err)
	require.Len(t, synced, 1)
	assert.Equal(t, models.TestimonialSynced, synced[0].Status)
	assert.Empty(t, s.Pending())
}
