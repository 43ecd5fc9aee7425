package pairings

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Store is the durable ledger backend; entries must expire on their own
// after the cooldown (the redis implementation keys by unordered pair with a
// TTL).
type Store interface {
	Record(ctx context.Context, a, b int64, cooldown time.Duration) error
	IsLive(ctx context.Context, a, b int64) (bool, error)
}

type Config struct {
	Cooldown time.Duration
}

// Ledger tracks recent pairings so the matcher avoids immediate repeats.
// Ledger outages degrade matching quality, never availability: errors are
// logged and treated as "no live pairing".
type Ledger struct {
	store  Store
	cfg    Config
	logger *zap.Logger
}

func NewLedger(store Store, cfg Config, logger *zap.Logger) *Ledger {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Ledger{store: store, cfg: cfg, logger: logger}
}

func (l *Ledger) Record(ctx context.Context, a, b int64) {
	if l.store == nil || a <= 0 || b <= 0 || a == b {
		return
	}

	if err := l.store.Record(ctx, a, b, l.cfg.Cooldown); err != nil {
		l.logger.Warn("record recent pairing failed",
			zap.Int64("participant_a", a),
			zap.Int64("participant_b", b),
			zap.Error(err))
	}
}

// IsLive reports whether the pair is inside the cooldown window.
func (l *Ledger) IsLive(ctx context.Context, a, b int64) bool {
	if l.store == nil || a <= 0 || b <= 0 {
		return false
	}

	live, err := l.store.IsLive(ctx, a, b)
	if err != nil {
		l.logger.Warn("recent pairing lookup failed",
			zap.Int64("participant_a", a),
			zap.Int64("participant_b", b),
			zap.Error(err))
		return false
	}
	return live
}
