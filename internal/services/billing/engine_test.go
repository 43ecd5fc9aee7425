package billing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/model"
)

type walletStub struct {
	mu      sync.Mutex
	balance int64
	total   int64
	calls   int
}

func (w *walletStub) Deduct(_ context.Context, _ int64, coins int64) (int64, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.calls++
	partial := w.balance < coins
	if partial {
		w.total += w.balance
		w.balance = 0
	} else {
		w.total += coins
		w.balance -= coins
	}
	return w.balance, partial, nil
}

type sinkStub struct {
	mu     sync.Mutex
	events []model.BillingEvent
}

func (s *sinkStub) PublishBilling(_ context.Context, event model.BillingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

type ruleSourceStub struct {
	rules []model.DeductionRule
}

func (s ruleSourceStub) ListActive(context.Context) ([]model.DeductionRule, error) {
	return s.rules, nil
}

func defaultRules() []model.DeductionRule {
	return []model.DeductionRule{
		{ThresholdSeconds: 60, Coins: 5, Active: true, Name: "first-minute"},
		{ThresholdSeconds: 300, Coins: 20, Active: true, Name: "five-minutes"},
	}
}

func newTestEngine(t *testing.T, wallet Wallet, sink EventSink, rules []model.DeductionRule) *Engine {
	t.Helper()

	engine := NewEngine(ruleSourceStub{rules: rules}, wallet, sink, Config{TickInterval: 5 * time.Second}, nil)
	if err := engine.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	return engine
}

func newTracker(participantID int64, sessionID string, startedAt time.Time) *tracker {
	return &tracker{
		active:        true,
		participantID: participantID,
		sessionID:     sessionID,
		startedAt:     startedAt,
		fired:         make(map[int64]bool),
		stop:          make(chan struct{}),
	}
}

func TestEvaluateFiresEachThresholdOnce(t *testing.T) {
	wallet := &walletStub{balance: 100}
	sink := &sinkStub{}
	engine := newTestEngine(t, wallet, sink, defaultRules())

	start := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	tr := newTracker(101, "s1", start)

	// A 310 second session observed in 5 second ticks charges 5 + 20
	// coins, each rule exactly once.
	for elapsed := 5; elapsed <= 310; elapsed += 5 {
		engine.evaluate(context.Background(), tr, start.Add(time.Duration(elapsed)*time.Second))
	}

	if wallet.total != 25 {
		t.Fatalf("expected 25 coins deducted, got %d", wallet.total)
	}
	if wallet.calls != 2 {
		t.Fatalf("expected exactly 2 deductions, got %d", wallet.calls)
	}
	if len(sink.events) != 2 {
		t.Fatalf("expected 2 billing events, got %d", len(sink.events))
	}
	if sink.events[0].RuleName != "first-minute" || sink.events[1].RuleName != "five-minutes" {
		t.Fatalf("unexpected event order: %+v", sink.events)
	}
}

func TestEvaluateLateTickCatchesUpMissedThresholds(t *testing.T) {
	wallet := &walletStub{balance: 100}
	engine := newTestEngine(t, wallet, &sinkStub{}, defaultRules())

	start := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	tr := newTracker(101, "s1", start)

	// A single tick long past both thresholds fires both rules.
	engine.evaluate(context.Background(), tr, start.Add(10*time.Minute))

	if wallet.total != 25 || wallet.calls != 2 {
		t.Fatalf("expected both rules to fire once, got total=%d calls=%d", wallet.total, wallet.calls)
	}
}

func TestEvaluateClampsPartialDeduction(t *testing.T) {
	wallet := &walletStub{balance: 3}
	sink := &sinkStub{}
	engine := newTestEngine(t, wallet, sink, defaultRules())

	start := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	tr := newTracker(101, "s1", start)

	engine.evaluate(context.Background(), tr, start.Add(time.Minute))

	if wallet.balance != 0 {
		t.Fatalf("balance must clamp at zero, got %d", wallet.balance)
	}
	if len(sink.events) != 1 || !sink.events[0].Partial || sink.events[0].Balance != 0 {
		t.Fatalf("unexpected billing event: %+v", sink.events)
	}
}

func TestEvaluateAfterStopDoesNothing(t *testing.T) {
	wallet := &walletStub{balance: 100}
	engine := newTestEngine(t, wallet, &sinkStub{}, defaultRules())

	start := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	tr := newTracker(101, "s1", start)

	engine.mu.Lock()
	engine.trackers[101] = tr
	engine.mu.Unlock()
	engine.StopTracking(101)

	engine.evaluate(context.Background(), tr, start.Add(time.Hour))

	if wallet.calls != 0 {
		t.Fatalf("stopped tracker must not charge, got %d calls", wallet.calls)
	}
}

// gatedWallet blocks the first deduction until released so a stop can land
// while the tick is mid-commit.
type gatedWallet struct {
	walletStub
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (w *gatedWallet) Deduct(ctx context.Context, participantID, coins int64) (int64, bool, error) {
	w.once.Do(func() {
		close(w.entered)
		<-w.release
	})
	return w.walletStub.Deduct(ctx, participantID, coins)
}

func TestStopTrackingHaltsInFlightTick(t *testing.T) {
	wallet := &gatedWallet{
		walletStub: walletStub{balance: 100},
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	engine := newTestEngine(t, wallet, &sinkStub{}, defaultRules())

	start := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	tr := newTracker(101, "s1", start)
	engine.mu.Lock()
	engine.trackers[101] = tr
	engine.mu.Unlock()

	// A single late tick owes both rules. The first commit is held open,
	// the tracker is stopped meanwhile, and the remaining rule must not
	// commit once the tick resumes.
	done := make(chan struct{})
	go func() {
		engine.evaluate(context.Background(), tr, start.Add(10*time.Minute))
		close(done)
	}()

	<-wallet.entered
	engine.StopTracking(101)
	close(wallet.release)
	<-done

	wallet.mu.Lock()
	defer wallet.mu.Unlock()
	if wallet.calls != 1 || wallet.total != 5 {
		t.Fatalf("deductions must halt after stop, got calls=%d total=%d", wallet.calls, wallet.total)
	}
}

func TestEvaluateSkipsInactiveRules(t *testing.T) {
	rules := []model.DeductionRule{
		{ThresholdSeconds: 60, Coins: 5, Active: false},
		{ThresholdSeconds: 120, Coins: 7, Active: true},
	}
	wallet := &walletStub{balance: 100}
	engine := newTestEngine(t, wallet, &sinkStub{}, rules)

	start := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	tr := newTracker(101, "s1", start)

	engine.evaluate(context.Background(), tr, start.Add(3*time.Minute))

	if wallet.total != 7 || wallet.calls != 1 {
		t.Fatalf("inactive rule must not fire, got total=%d calls=%d", wallet.total, wallet.calls)
	}
}

func TestStopTrackingIsIdempotent(t *testing.T) {
	engine := newTestEngine(t, &walletStub{balance: 100}, &sinkStub{}, defaultRules())

	engine.StartTracking(101, "s1")
	engine.StopTracking(101)
	engine.StopTracking(101)
	engine.StopTracking(404)
}

func TestStartTrackingReplacesExistingTracker(t *testing.T) {
	engine := newTestEngine(t, &walletStub{balance: 100}, &sinkStub{}, defaultRules())

	engine.StartTracking(101, "s1")
	engine.StartTracking(101, "s2")

	engine.mu.Lock()
	tr := engine.trackers[101]
	engine.mu.Unlock()

	if tr == nil || tr.sessionID != "s2" {
		t.Fatalf("expected tracker for the new session, got %+v", tr)
	}
	engine.StopTracking(101)
}

func TestReloadSortsRules(t *testing.T) {
	rules := []model.DeductionRule{
		{ThresholdSeconds: 300, Coins: 20, Active: true},
		{ThresholdSeconds: 60, Coins: 5, Active: true},
	}
	engine := newTestEngine(t, &walletStub{}, &sinkStub{}, rules)

	got := engine.Rules()
	if len(got) != 2 || got[0].ThresholdSeconds != 60 {
		t.Fatalf("rules must be sorted by threshold: %+v", got)
	}
}
