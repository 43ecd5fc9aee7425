package queue

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/enums"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/model"
)

var (
	ErrAlreadyWaiting = errors.New("participant already waiting")
	ErrNotWaiting     = errors.New("participant is not waiting")
)

// Tier is the candidate priority class. Lower wins.
type Tier int

const (
	TierRealUser Tier = iota
	TierStaff
	TierVideo
	tierNone
)

// Pool is the process-wide registry of entries awaiting a match. Reads and
// writes take the pool mutex only; taking entries out in reaction to a match
// is the engine's job, done under participant locks.
type Pool struct {
	mu      sync.Mutex
	entries map[int64]model.WaitingEntry
	now     func() time.Time
}

func NewPool() *Pool {
	return &Pool{
		entries: make(map[int64]model.WaitingEntry),
		now:     time.Now,
	}
}

func (p *Pool) Enqueue(entry model.WaitingEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.entries[entry.ParticipantID]; ok {
		return ErrAlreadyWaiting
	}
	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = p.now().UTC()
	}
	p.entries[entry.ParticipantID] = entry
	return nil
}

func (p *Pool) Dequeue(participantID int64) (model.WaitingEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[participantID]
	if !ok {
		return model.WaitingEntry{}, ErrNotWaiting
	}
	delete(p.entries, participantID)
	return entry, nil
}

func (p *Pool) Contains(participantID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[participantID]
	return ok
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Entries returns a snapshot of every waiting entry, FIFO-ordered.
func (p *Pool) Entries() []model.WaitingEntry {
	p.mu.Lock()
	out := make([]model.WaitingEntry, 0, len(p.entries))
	for _, entry := range p.entries {
		out = append(out, entry)
	}
	p.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EnqueuedAt.Before(out[j].EnqueuedAt)
	})
	return out
}

// Candidates returns the entries eligible for the requester, ordered by
// priority tier then enqueue time (FIFO within a tier). The requester's own
// entry is excluded. Affinity rules per tier: real users share the pool,
// staff and video must also share the sequence.
func (p *Pool) Candidates(requester model.Participant) []model.WaitingEntry {
	p.mu.Lock()
	out := make([]model.WaitingEntry, 0, len(p.entries))
	for _, entry := range p.entries {
		if entry.ParticipantID == requester.ID {
			continue
		}
		if TierOf(requester, entry) == tierNone {
			continue
		}
		out = append(out, entry)
	}
	p.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := TierOf(requester, out[i]), TierOf(requester, out[j])
		if ti != tj {
			return ti < tj
		}
		return out[i].EnqueuedAt.Before(out[j].EnqueuedAt)
	})
	return out
}

// TierOf classifies an entry relative to the requester, or tierNone when the
// entry is out of scope for them.
func TierOf(requester model.Participant, entry model.WaitingEntry) Tier {
	if entry.PoolID != requester.PoolID {
		return tierNone
	}

	switch entry.Kind {
	case enums.KindAppUser:
		return TierRealUser
	case enums.KindStaff:
		if entry.SequenceID == requester.SequenceID {
			return TierStaff
		}
	case enums.KindVideo:
		if entry.SequenceID == requester.SequenceID {
			return TierVideo
		}
	}
	return tierNone
}
