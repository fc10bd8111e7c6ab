package presence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnhub/studyroom/internal/models"
)

// Repository handles session_presence rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a presence repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LogJoin inserts a row when a participant joins a session room.
func (r *Repository) LogJoin(ctx context.Context, sessionID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_presence (session_id, user_id, joined_at) VALUES ($1, $2, NOW())`,
		sessionID, userID)
	if err != nil {
		return fmt.Errorf("log join: %w", err)
	}
	return nil
}

// LogLeave closes the most recent open span for this user in this session.
func (r *Repository) LogLeave(ctx context.Context, sessionID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE session_presence p SET left_at = NOW(), watch_seconds = GREATEST(0, EXTRACT(EPOCH FROM (NOW() - p.joined_at))::BIGINT)
		 FROM (SELECT id FROM session_presence WHERE session_id = $1 AND user_id = $2 AND left_at IS NULL ORDER BY joined_at DESC LIMIT 1) AS sub
		 WHERE p.id = sub.id`,
		sessionID, userID)
	if err != nil {
		return fmt.Errorf("log leave: %w", err)
	}
	return nil
}

// ListBySession returns presence spans, newest first.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.PresenceEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, user_id, joined_at, left_at, watch_seconds
		 FROM session_presence WHERE session_id = $1 ORDER BY joined_at DESC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("list presence: %w", err)
	}
	defer rows.Close()
	list := []models.PresenceEntry{}
	for rows.Next() {
		var e models.PresenceEntry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.UserID, &e.JoinedAt, &e.LeftAt, &e.WatchSeconds); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
