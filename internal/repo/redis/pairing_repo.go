package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/rules"
)

const pairingPrefix = "pairings:"

// PairingRepo stores recent pairings as keys with a TTL equal to the
// cooldown window; expiry in redis is the ledger expiry.
type PairingRepo struct {
	client *goredis.Client
}

func NewPairingRepo(client *goredis.Client) *PairingRepo {
	return &PairingRepo{client: client}
}

func (r *PairingRepo) Record(ctx context.Context, a, b int64, cooldown time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if a <= 0 || b <= 0 || a == b || cooldown <= 0 {
		return fmt.Errorf("invalid pairing payload")
	}

	if err := r.client.Set(ctx, pairingKey(a, b), time.Now().UTC().Unix(), cooldown).Err(); err != nil {
		return fmt.Errorf("record pairing: %w", err)
	}

	return nil
}

func (r *PairingRepo) IsLive(ctx context.Context, a, b int64) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	if a <= 0 || b <= 0 {
		return false, fmt.Errorf("invalid pairing lookup")
	}

	n, err := r.client.Exists(ctx, pairingKey(a, b)).Result()
	if err != nil {
		return false, fmt.Errorf("lookup pairing: %w", err)
	}

	return n > 0, nil
}

func pairingKey(a, b int64) string {
	return pairingPrefix + rules.PairKey(a, b)
}
