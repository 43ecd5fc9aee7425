package participants

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/enums"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/model"
)

var (
	ErrNotFound    = errors.New("participant not found")
	ErrLockTimeout = errors.New("participant lock timeout")
)

// Store is the durable side of the directory. Identity fields are loaded
// from it; status, sequence progress and coin balance are written back.
// A nil store keeps the directory fully in-memory.
type Store interface {
	Get(ctx context.Context, participantID int64) (model.Participant, error)
	UpdateProgress(ctx context.Context, participantID, sequenceID int64, watched, total int) error
	UpdateBalance(ctx context.Context, participantID, balance int64) error
	UpdateStatus(ctx context.Context, participantID int64, status enums.ParticipantStatus) error
}

type record struct {
	mu     sync.Mutex
	sem    chan struct{}
	reqSeq uint64
	p      model.Participant
}

// Directory owns the runtime participant records. Field access goes through
// short critical sections on record.mu; match transactions additionally hold
// the record's semaphore for their whole span, acquired with a timeout so a
// contended match attempt degrades into a retry instead of blocking forever.
type Directory struct {
	mu          sync.Mutex
	records     map[int64]*record
	store       Store
	lockTimeout time.Duration
	logger      *zap.Logger
}

func NewDirectory(store Store, lockTimeout time.Duration, logger *zap.Logger) *Directory {
	if lockTimeout <= 0 {
		lockTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Directory{
		records:     make(map[int64]*record),
		store:       store,
		lockTimeout: lockTimeout,
		logger:      logger,
	}
}

// Register inserts or replaces a runtime record. Used at seed time and by
// tests; normal traffic loads records lazily through Get.
func (d *Directory) Register(p model.Participant) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.records[p.ID]; ok {
		existing.mu.Lock()
		existing.p = p
		existing.mu.Unlock()
		return
	}
	d.records[p.ID] = newRecord(p)
}

func (d *Directory) Get(ctx context.Context, participantID int64) (model.Participant, error) {
	rec, err := d.resolve(ctx, participantID)
	if err != nil {
		return model.Participant{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.p, nil
}

// Peek returns the snapshot without touching the store.
func (d *Directory) Peek(participantID int64) (model.Participant, bool) {
	d.mu.Lock()
	rec, ok := d.records[participantID]
	d.mu.Unlock()
	if !ok {
		return model.Participant{}, false
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.p, true
}

// Acquire takes the participant's exclusive match lock. The returned release
// must be called exactly once.
func (d *Directory) Acquire(ctx context.Context, participantID int64) (func(), error) {
	rec, err := d.resolve(ctx, participantID)
	if err != nil {
		return nil, err
	}
	return d.acquireRecord(ctx, rec)
}

// AcquirePair locks two participants in ascending id order so concurrent
// match attempts over the same pair cannot deadlock.
func (d *Directory) AcquirePair(ctx context.Context, a, b int64) (func(), error) {
	if a == b {
		return nil, fmt.Errorf("cannot lock a participant against itself")
	}

	first, second := a, b
	if first > second {
		first, second = second, first
	}

	releaseFirst, err := d.Acquire(ctx, first)
	if err != nil {
		return nil, err
	}

	releaseSecond, err := d.Acquire(ctx, second)
	if err != nil {
		releaseFirst()
		return nil, err
	}

	return func() {
		releaseSecond()
		releaseFirst()
	}, nil
}

// BeginRequest bumps and returns the participant's request sequence number.
// An in-flight match attempt compares its number against CurrentRequest at
// commit time and discards itself when superseded.
func (d *Directory) BeginRequest(participantID int64) uint64 {
	d.mu.Lock()
	rec, ok := d.records[participantID]
	if !ok {
		rec = newRecord(model.Participant{ID: participantID})
		d.records[participantID] = rec
	}
	d.mu.Unlock()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.reqSeq++
	return rec.reqSeq
}

func (d *Directory) CurrentRequest(participantID int64) uint64 {
	d.mu.Lock()
	rec, ok := d.records[participantID]
	d.mu.Unlock()
	if !ok {
		return 0
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.reqSeq
}

func (d *Directory) SetStatus(ctx context.Context, participantID int64, status enums.ParticipantStatus) error {
	rec, err := d.resolve(ctx, participantID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	rec.p.Status = status
	rec.mu.Unlock()

	if d.store != nil {
		if err := d.store.UpdateStatus(ctx, participantID, status); err != nil {
			d.logger.Warn("persist participant status failed", zap.Int64("participant_id", participantID), zap.Error(err))
		}
	}

	return nil
}

// ApplyProgress overwrites the participant's sequence assignment and
// counters. Callers compute the new values under the participant's match
// lock; this only stores them.
func (d *Directory) ApplyProgress(ctx context.Context, participantID, sequenceID int64, watched, total int) error {
	rec, err := d.resolve(ctx, participantID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	rec.p.SequenceID = sequenceID
	rec.p.VideosWatched = watched
	rec.p.SequenceTotalVideos = total
	rec.mu.Unlock()

	if d.store != nil {
		if err := d.store.UpdateProgress(ctx, participantID, sequenceID, watched, total); err != nil {
			d.logger.Warn("persist participant progress failed", zap.Int64("participant_id", participantID), zap.Error(err))
		}
	}

	return nil
}

// Deduct subtracts coins from the balance, clamping at zero. Partial is true
// when the balance could not cover the full amount. The balance never goes
// negative.
func (d *Directory) Deduct(ctx context.Context, participantID, coins int64) (int64, bool, error) {
	if coins < 0 {
		return 0, false, fmt.Errorf("deduction amount must not be negative")
	}

	rec, err := d.resolve(ctx, participantID)
	if err != nil {
		return 0, false, err
	}

	rec.mu.Lock()
	partial := rec.p.CoinBalance < coins
	if partial {
		rec.p.CoinBalance = 0
	} else {
		rec.p.CoinBalance -= coins
	}
	balance := rec.p.CoinBalance
	rec.mu.Unlock()

	if d.store != nil {
		if err := d.store.UpdateBalance(ctx, participantID, balance); err != nil {
			d.logger.Warn("persist participant balance failed", zap.Int64("participant_id", participantID), zap.Error(err))
		}
	}

	return balance, partial, nil
}

func (d *Directory) resolve(ctx context.Context, participantID int64) (*record, error) {
	if participantID <= 0 {
		return nil, fmt.Errorf("invalid participant id")
	}

	d.mu.Lock()
	rec, ok := d.records[participantID]
	d.mu.Unlock()
	if ok && rec.loaded() {
		return rec, nil
	}

	if d.store == nil {
		if ok {
			return rec, nil
		}
		return nil, ErrNotFound
	}

	p, err := d.store.Get(ctx, participantID)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if rec, ok := d.records[participantID]; ok && rec.loaded() {
		return rec, nil
	}
	if rec, ok := d.records[participantID]; ok {
		rec.mu.Lock()
		rec.p = p
		rec.mu.Unlock()
		return rec, nil
	}
	rec = newRecord(p)
	d.records[participantID] = rec
	return rec, nil
}

func (d *Directory) acquireRecord(ctx context.Context, rec *record) (func(), error) {
	timer := time.NewTimer(d.lockTimeout)
	defer timer.Stop()

	select {
	case rec.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() { <-rec.sem })
		}, nil
	case <-timer.C:
		return nil, ErrLockTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newRecord(p model.Participant) *record {
	return &record{
		sem: make(chan struct{}, 1),
		p:   p,
	}
}

func (r *record) loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.p.Kind != ""
}
