package messages

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnhub/studyroom/internal/models"
)

// Repository handles session chat persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a messages repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a message and fills its id and timestamp.
func (r *Repository) Create(ctx context.Context, m *models.ChatMessage) error {
	const query = `INSERT INTO session_messages (session_id, sender_id, sender_name, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	if err := r.pool.QueryRow(ctx, query, m.SessionID, m.SenderID, m.Sender, m.Content).
		Scan(&m.ID, &m.Timestamp); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListBySession returns the session's messages oldest first.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.ChatMessage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, sender_id, sender_name, content, created_at
		 FROM session_messages WHERE session_id = $1 ORDER BY created_at, id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	list := []models.ChatMessage{}
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.SenderID, &m.Sender, &m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
