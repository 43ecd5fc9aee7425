package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/model"
)

// SessionRepo keeps a durable history of rooms. The live registry is owned
// by the sessions service; rows here are for billing disputes and analytics.
type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

func (r *SessionRepo) Insert(ctx context.Context, session model.Session) error {
	if session.ID == "" || session.ParticipantA <= 0 {
		return fmt.Errorf("invalid session payload")
	}
	if r.pool == nil {
		return nil
	}

	var participantB *int64
	if session.ParticipantB > 0 {
		participantB = &session.ParticipantB
	}
	var videoID *int64
	if session.VideoID > 0 {
		videoID = &session.VideoID
	}

	// The session row and its per-participant index rows land together or
	// not at all.
	return WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
INSERT INTO sessions (id, participant_a, participant_b, video_id, session_type, pool_id, sequence_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING
`, session.ID, session.ParticipantA, participantB, videoID, string(session.Type), session.PoolID, session.SequenceID, session.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		for _, participantID := range []int64{session.ParticipantA, session.ParticipantB} {
			if participantID <= 0 {
				continue
			}
			_, err := tx.Exec(ctx, `
INSERT INTO session_participants (session_id, participant_id, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (session_id, participant_id) DO NOTHING
`, session.ID, participantID, session.CreatedAt)
			if err != nil {
				return fmt.Errorf("insert session participant: %w", err)
			}
		}

		return nil
	})
}

func (r *SessionRepo) MarkEnded(ctx context.Context, sessionID string, endedAt time.Time) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if r.pool == nil {
		return nil
	}

	_, err := r.pool.Exec(ctx, `
UPDATE sessions
SET ended_at = $2
WHERE id = $1 AND ended_at IS NULL
`, sessionID, endedAt)
	if err != nil {
		return fmt.Errorf("mark session ended: %w", err)
	}

	return nil
}
