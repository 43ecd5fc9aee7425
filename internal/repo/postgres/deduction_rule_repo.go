package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/model"
)

type DeductionRuleRepo struct {
	pool *pgxpool.Pool
}

func NewDeductionRuleRepo(pool *pgxpool.Pool) *DeductionRuleRepo {
	return &DeductionRuleRepo{pool: pool}
}

// ListActive returns active rules sorted ascending by threshold. The billing
// engine caches the result and reloads on demand only.
func (r *DeductionRuleRepo) ListActive(ctx context.Context) ([]model.DeductionRule, error) {
	if r.pool == nil {
		return []model.DeductionRule{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT threshold_seconds, coins, active, COALESCE(name, '')
FROM deduction_rules
WHERE active
ORDER BY threshold_seconds ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list deduction rules: %w", err)
	}
	defer rows.Close()

	rules := make([]model.DeductionRule, 0, 8)
	for rows.Next() {
		var rule model.DeductionRule
		if err := rows.Scan(&rule.ThresholdSeconds, &rule.Coins, &rule.Active, &rule.Name); err != nil {
			return nil, fmt.Errorf("scan deduction rule: %w", err)
		}
		rules = append(rules, rule)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate deduction rules: %w", rows.Err())
	}

	return rules, nil
}
