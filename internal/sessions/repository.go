package sessions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnhub/studyroom/internal/models"
)

var ErrNotFound = errors.New("session not found")

// Repository handles session and content persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new session.
func (r *Repository) Create(ctx context.Context, s *models.Session) error {
	const query = `INSERT INTO sessions (host_id, guest_id, content_type, content_id, scheduled_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query, s.HostID, s.GuestID, string(s.ContentType), s.ContentID, s.ScheduledAt).
		Scan(&s.ID, &s.CreatedAt)
}

// GetByID returns a session by ID or ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	const query = `SELECT id, host_id, guest_id, content_type, content_id, scheduled_at, created_at
		FROM sessions WHERE id = $1`
	var s models.Session
	var contentType string
	err := r.pool.QueryRow(ctx, query, id).
		Scan(&s.ID, &s.HostID, &s.GuestID, &contentType, &s.ContentID, &s.ScheduledAt, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	s.ContentType = models.ContentType(contentType)
	return &s, nil
}

// IsParticipant reports whether userID is the host or guest of the session.
func (r *Repository) IsParticipant(ctx context.Context, sessionID, userID uuid.UUID) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1 AND (host_id = $2 OR guest_id = $2))`
	var ok bool
	if err := r.pool.QueryRow(ctx, query, sessionID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("check participant: %w", err)
	}
	return ok, nil
}

// ListSections returns the content's sections in position order, each with its resources.
func (r *Repository) ListSections(ctx context.Context, contentType models.ContentType, contentID uuid.UUID) ([]models.Section, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.title, s.position,
		        r.id, r.title, r.kind, r.file_key, r.external_url, r.duration_seconds, r.position
		 FROM content_sections s
		 LEFT JOIN content_resources r ON r.section_id = s.id
		 WHERE s.content_type = $1 AND s.content_id = $2
		 ORDER BY s.position, s.id, r.position`,
		string(contentType), contentID)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	var sections []models.Section
	for rows.Next() {
		var sec models.Section
		var (
			resID                *uuid.UUID
			resTitle, kind       *string
			fileKey, externalURL *string
			duration             *float64
			resPosition          *int
		)
		if err := rows.Scan(&sec.ID, &sec.Title, &sec.Position,
			&resID, &resTitle, &kind, &fileKey, &externalURL, &duration, &resPosition); err != nil {
			return nil, err
		}
		if n := len(sections); n == 0 || sections[n-1].ID != sec.ID {
			sec.Resources = []models.Resource{}
			sections = append(sections, sec)
		}
		if resID == nil {
			continue
		}
		res := models.Resource{
			ID:              *resID,
			SectionID:       sec.ID,
			Title:           *resTitle,
			Kind:            models.ResourceKind(*kind),
			FileKey:         *fileKey,
			URL:             *externalURL,
			DurationSeconds: *duration,
			Position:        *resPosition,
		}
		last := &sections[len(sections)-1]
		last.Resources = append(last.Resources, res)
	}
	return sections, rows.Err()
}
