package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/enums"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/model"
)

var ErrParticipantNotFound = errors.New("participant not found")

// ParticipantRepo loads identity-owned participant rows and writes back the
// fields the core owns: status, sequence progress and coin balance.
type ParticipantRepo struct {
	pool *pgxpool.Pool
}

func NewParticipantRepo(pool *pgxpool.Pool) *ParticipantRepo {
	return &ParticipantRepo{pool: pool}
}

func (r *ParticipantRepo) Get(ctx context.Context, participantID int64) (model.Participant, error) {
	if participantID <= 0 {
		return model.Participant{}, fmt.Errorf("invalid participant id")
	}
	if r.pool == nil {
		return model.Participant{}, ErrParticipantNotFound
	}

	var p model.Participant
	err := r.pool.QueryRow(ctx, `
SELECT
	id,
	kind,
	pool_id,
	sequence_id,
	gender,
	gender_preference,
	COALESCE(coin_balance, 0),
	COALESCE(videos_watched, 0),
	COALESCE(sequence_total_videos, 0),
	status
FROM participants
WHERE id = $1
`, participantID).Scan(
		&p.ID,
		&p.Kind,
		&p.PoolID,
		&p.SequenceID,
		&p.Gender,
		&p.GenderPreference,
		&p.CoinBalance,
		&p.VideosWatched,
		&p.SequenceTotalVideos,
		&p.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Participant{}, ErrParticipantNotFound
		}
		return model.Participant{}, fmt.Errorf("get participant: %w", err)
	}

	return p, nil
}

func (r *ParticipantRepo) UpdateProgress(ctx context.Context, participantID, sequenceID int64, watched, total int) error {
	if participantID <= 0 {
		return fmt.Errorf("invalid participant id")
	}
	if r.pool == nil {
		return nil
	}

	_, err := r.pool.Exec(ctx, `
UPDATE participants
SET sequence_id = $2, videos_watched = $3, sequence_total_videos = $4
WHERE id = $1
`, participantID, sequenceID, watched, total)
	if err != nil {
		return fmt.Errorf("update participant progress: %w", err)
	}

	return nil
}

func (r *ParticipantRepo) UpdateBalance(ctx context.Context, participantID, balance int64) error {
	if participantID <= 0 {
		return fmt.Errorf("invalid participant id")
	}
	if balance < 0 {
		return fmt.Errorf("balance must not be negative")
	}
	if r.pool == nil {
		return nil
	}

	_, err := r.pool.Exec(ctx, `
UPDATE participants
SET coin_balance = $2
WHERE id = $1
`, participantID, balance)
	if err != nil {
		return fmt.Errorf("update participant balance: %w", err)
	}

	return nil
}

func (r *ParticipantRepo) UpdateStatus(ctx context.Context, participantID int64, status enums.ParticipantStatus) error {
	if participantID <= 0 {
		return fmt.Errorf("invalid participant id")
	}
	if r.pool == nil {
		return nil
	}

	_, err := r.pool.Exec(ctx, `
UPDATE participants
SET status = $2
WHERE id = $1
`, participantID, string(status))
	if err != nil {
		return fmt.Errorf("update participant status: %w", err)
	}

	return nil
}
