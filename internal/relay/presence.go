package relay

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/studyroom/internal/protocol"
)

// Membership is a client's attachment to one session channel for the lifetime of a view.
type Membership struct {
	conn      *Conn
	sessionID uuid.UUID
}

// Open dials the relay and lets setup register handlers before the join is announced,
// so nothing addressed to the session arrives unhandled.
func Open(ctx context.Context, rawURL, token string, sessionID uuid.UUID, setup func(*Conn), logger *zap.Logger) (*Membership, error) {
	conn, err := Dial(ctx, rawURL, token, logger)
	if err != nil {
		return nil, err
	}
	if setup != nil {
		setup(conn)
	}
	m, err := Join(conn, sessionID)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return m, nil
}

// Join announces intent to join sessionID on conn.
func Join(conn *Conn, sessionID uuid.UUID) (*Membership, error) {
	if err := conn.Emit(protocol.EventJoinSession, protocol.JoinPayload{SessionID: sessionID}); err != nil {
		return nil, err
	}
	return &Membership{conn: conn, sessionID: sessionID}, nil
}

// SessionID is the joined session.
func (m *Membership) SessionID() uuid.UUID { return m.sessionID }

// Conn is the underlying connection.
func (m *Membership) Conn() *Conn { return m.conn }

// Leave closes the connection. The peer is not notified.
func (m *Membership) Leave() error {
	return m.conn.Close()
}
