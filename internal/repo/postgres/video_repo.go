package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/model"
)

type VideoRepo struct {
	pool *pgxpool.Pool
}

func NewVideoRepo(pool *pgxpool.Pool) *VideoRepo {
	return &VideoRepo{pool: pool}
}

func (r *VideoRepo) ListActive(ctx context.Context) ([]model.FallbackVideo, error) {
	if r.pool == nil {
		return []model.FallbackVideo{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, pool_id, sequence_id, COALESCE(title, ''), object_key, active
FROM fallback_videos
WHERE active
ORDER BY pool_id, sequence_id, id
`)
	if err != nil {
		return nil, fmt.Errorf("list fallback videos: %w", err)
	}
	defer rows.Close()

	videos := make([]model.FallbackVideo, 0, 32)
	for rows.Next() {
		var v model.FallbackVideo
		if err := rows.Scan(&v.ID, &v.PoolID, &v.SequenceID, &v.Title, &v.ObjectKey, &v.Active); err != nil {
			return nil, fmt.Errorf("scan fallback video: %w", err)
		}
		videos = append(videos, v)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate fallback videos: %w", rows.Err())
	}

	return videos, nil
}

func (r *VideoRepo) GetByID(ctx context.Context, videoID int64) (model.FallbackVideo, error) {
	if videoID <= 0 {
		return model.FallbackVideo{}, fmt.Errorf("invalid video id")
	}
	if r.pool == nil {
		return model.FallbackVideo{}, fmt.Errorf("postgres pool is nil")
	}

	var v model.FallbackVideo
	err := r.pool.QueryRow(ctx, `
SELECT id, pool_id, sequence_id, COALESCE(title, ''), object_key, active
FROM fallback_videos
WHERE id = $1
`, videoID).Scan(&v.ID, &v.PoolID, &v.SequenceID, &v.Title, &v.ObjectKey, &v.Active)
	if err != nil {
		return model.FallbackVideo{}, fmt.Errorf("get fallback video: %w", err)
	}

	return v, nil
}
