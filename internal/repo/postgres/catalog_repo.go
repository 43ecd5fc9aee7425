package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/model"
)

type CatalogRepo struct {
	pool *pgxpool.Pool
}

func NewCatalogRepo(pool *pgxpool.Pool) *CatalogRepo {
	return &CatalogRepo{pool: pool}
}

func (r *CatalogRepo) GetPool(ctx context.Context, poolID int64) (model.PoolCatalog, error) {
	if poolID <= 0 {
		return model.PoolCatalog{}, fmt.Errorf("invalid pool id")
	}
	if r.pool == nil {
		return model.PoolCatalog{PoolID: poolID}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, position, video_count, active
FROM sequences
WHERE pool_id = $1
ORDER BY position ASC, id ASC
`, poolID)
	if err != nil {
		return model.PoolCatalog{}, fmt.Errorf("list pool sequences: %w", err)
	}
	defer rows.Close()

	catalog := model.PoolCatalog{PoolID: poolID}
	for rows.Next() {
		var seq model.CatalogSequence
		if err := rows.Scan(&seq.ID, &seq.Position, &seq.VideoCount, &seq.Active); err != nil {
			return model.PoolCatalog{}, fmt.Errorf("scan pool sequence: %w", err)
		}
		catalog.Sequences = append(catalog.Sequences, seq)
	}

	if rows.Err() != nil {
		return model.PoolCatalog{}, fmt.Errorf("iterate pool sequences: %w", rows.Err())
	}

	return catalog, nil
}
