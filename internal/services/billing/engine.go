package billing

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/model"
)

// RuleSource is the external read model for deduction rules.
type RuleSource interface {
	ListActive(ctx context.Context) ([]model.DeductionRule, error)
}

// Wallet commits a deduction, clamping the balance at zero. Partial reports
// that the balance could not cover the full amount.
type Wallet interface {
	Deduct(ctx context.Context, participantID, coins int64) (balance int64, partial bool, err error)
}

// EventSink delivers billing notifications to clients.
type EventSink interface {
	PublishBilling(ctx context.Context, event model.BillingEvent) error
}

type Config struct {
	TickInterval time.Duration
}

// tracker is one participant's elapsed time inside a real-user session.
// fired keys by rule threshold so each rule commits exactly once per session.
type tracker struct {
	mu            sync.Mutex
	active        bool
	participantID int64
	sessionID     string
	startedAt     time.Time
	fired         map[int64]bool
	stop          chan struct{}
}

// Engine deducts coins from app users as their real-user sessions age past
// configured thresholds. One goroutine per tracked participant ticks elapsed
// time against the cached rule set.
type Engine struct {
	mu       sync.Mutex
	trackers map[int64]*tracker

	rulesMu sync.RWMutex
	rules   []model.DeductionRule

	source RuleSource
	wallet Wallet
	events EventSink
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

func NewEngine(source RuleSource, wallet Wallet, events EventSink, cfg Config, logger *zap.Logger) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		trackers: make(map[int64]*tracker),
		source:   source,
		wallet:   wallet,
		events:   events,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Reload replaces the cached rule set from the source. Rules are kept sorted
// ascending by threshold.
func (e *Engine) Reload(ctx context.Context) error {
	if e.source == nil {
		return nil
	}

	rules, err := e.source.ListActive(ctx)
	if err != nil {
		return err
	}
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].ThresholdSeconds < rules[j].ThresholdSeconds
	})

	e.rulesMu.Lock()
	e.rules = rules
	e.rulesMu.Unlock()

	e.logger.Info("deduction rules reloaded", zap.Int("count", len(rules)))
	return nil
}

// Rules returns a copy of the cached rule set.
func (e *Engine) Rules() []model.DeductionRule {
	e.rulesMu.RLock()
	defer e.rulesMu.RUnlock()
	return append([]model.DeductionRule(nil), e.rules...)
}

// StartTracking begins charging the participant for the session. A tracker
// already running for the participant is replaced.
func (e *Engine) StartTracking(participantID int64, sessionID string) {
	e.StopTracking(participantID)

	tr := &tracker{
		active:        true,
		participantID: participantID,
		sessionID:     sessionID,
		startedAt:     e.now(),
		fired:         make(map[int64]bool),
		stop:          make(chan struct{}),
	}

	e.mu.Lock()
	e.trackers[participantID] = tr
	e.mu.Unlock()

	go e.run(tr)
}

// StopTracking halts charging for the participant. Calling it for an
// untracked participant is a no-op; a tick already in flight observes the
// deactivation before committing.
func (e *Engine) StopTracking(participantID int64) {
	e.mu.Lock()
	tr, ok := e.trackers[participantID]
	if ok {
		delete(e.trackers, participantID)
	}
	e.mu.Unlock()
	if !ok {
		return
	}

	tr.mu.Lock()
	if tr.active {
		tr.active = false
		close(tr.stop)
	}
	tr.mu.Unlock()
}

func (e *Engine) run(tr *tracker) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-tr.stop:
			return
		case <-ticker.C:
			e.evaluate(context.Background(), tr, e.now())
		}
	}
}

// evaluate fires every rule whose threshold the tracker has crossed and has
// not fired yet. The active flag is re-checked under the tracker lock right
// before each commit so a concurrent stop wins.
func (e *Engine) evaluate(ctx context.Context, tr *tracker, now time.Time) {
	rules := e.Rules()
	if len(rules) == 0 {
		return
	}

	tr.mu.Lock()
	if !tr.active {
		tr.mu.Unlock()
		return
	}
	elapsed := int64(now.Sub(tr.startedAt) / time.Second)

	var due []model.DeductionRule
	for _, rule := range rules {
		if !rule.Active || rule.Coins <= 0 {
			continue
		}
		if elapsed >= rule.ThresholdSeconds && !tr.fired[rule.ThresholdSeconds] {
			tr.fired[rule.ThresholdSeconds] = true
			due = append(due, rule)
		}
	}
	participantID, sessionID := tr.participantID, tr.sessionID
	tr.mu.Unlock()

	for _, rule := range due {
		tr.mu.Lock()
		stopped := !tr.active
		tr.mu.Unlock()
		if stopped {
			return
		}

		balance, partial, err := e.wallet.Deduct(ctx, participantID, rule.Coins)
		if err != nil {
			e.logger.Error("coin deduction failed",
				zap.Int64("participant_id", participantID),
				zap.String("session_id", sessionID),
				zap.Int64("coins", rule.Coins),
				zap.Error(err))
			continue
		}

		if partial {
			e.logger.Warn("partial coin deduction, balance clamped at zero",
				zap.Int64("participant_id", participantID),
				zap.String("session_id", sessionID),
				zap.Int64("coins", rule.Coins))
		}

		if e.events != nil {
			event := model.BillingEvent{
				ParticipantID: participantID,
				SessionID:     sessionID,
				RuleName:      rule.Name,
				Coins:         rule.Coins,
				Partial:       partial,
				Balance:       balance,
			}
			if err := e.events.PublishBilling(ctx, event); err != nil {
				e.logger.Warn("publish billing event failed",
					zap.Int64("participant_id", participantID),
					zap.Error(err))
			}
		}
	}
}
