package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/enums"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/model"
)

func entry(id int64, kind enums.ParticipantKind, poolID, seqID int64, at time.Time) model.WaitingEntry {
	return model.WaitingEntry{
		ParticipantID: id,
		Kind:          kind,
		PoolID:        poolID,
		SequenceID:    seqID,
		EnqueuedAt:    at,
	}
}

func requester(poolID, seqID int64) model.Participant {
	return model.Participant{
		ID:         1,
		Kind:       enums.KindAppUser,
		PoolID:     poolID,
		SequenceID: seqID,
	}
}

func TestEnqueueRejectsDuplicate(t *testing.T) {
	p := NewPool()

	if err := p.Enqueue(entry(101, enums.KindAppUser, 1, 10, time.Time{})); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	err := p.Enqueue(entry(101, enums.KindAppUser, 1, 10, time.Time{}))
	if !errors.Is(err, ErrAlreadyWaiting) {
		t.Fatalf("expected ErrAlreadyWaiting, got %v", err)
	}
}

func TestDequeueUnknownFails(t *testing.T) {
	p := NewPool()

	_, err := p.Dequeue(404)
	if !errors.Is(err, ErrNotWaiting) {
		t.Fatalf("expected ErrNotWaiting, got %v", err)
	}
}

func TestCandidatesOrderedByTierThenFIFO(t *testing.T) {
	p := NewPool()
	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	// Video and staff enqueued before the app users; tier must still win.
	mustEnqueue(t, p, entry(301, enums.KindVideo, 1, 10, base))
	mustEnqueue(t, p, entry(201, enums.KindStaff, 1, 10, base.Add(time.Second)))
	mustEnqueue(t, p, entry(102, enums.KindAppUser, 1, 10, base.Add(3*time.Second)))
	mustEnqueue(t, p, entry(101, enums.KindAppUser, 1, 10, base.Add(2*time.Second)))

	got := p.Candidates(requester(1, 10))
	if len(got) != 4 {
		t.Fatalf("expected 4 candidates, got %d", len(got))
	}

	wantOrder := []int64{101, 102, 201, 301}
	for i, want := range wantOrder {
		if got[i].ParticipantID != want {
			t.Fatalf("unexpected candidate order at %d: got %d want %d", i, got[i].ParticipantID, want)
		}
	}
}

func TestCandidatesAppUserBeatsStaff(t *testing.T) {
	p := NewPool()
	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	mustEnqueue(t, p, entry(201, enums.KindStaff, 1, 10, base))
	mustEnqueue(t, p, entry(101, enums.KindAppUser, 1, 10, base.Add(time.Minute)))

	got := p.Candidates(requester(1, 10))
	if len(got) == 0 || got[0].ParticipantID != 101 {
		t.Fatalf("app user must outrank staff, got %+v", got)
	}
}

func TestCandidatesRespectAffinity(t *testing.T) {
	p := NewPool()
	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	// Wrong pool: invisible entirely.
	mustEnqueue(t, p, entry(101, enums.KindAppUser, 2, 10, base))
	// Staff in the right pool but wrong sequence: invisible.
	mustEnqueue(t, p, entry(201, enums.KindStaff, 1, 11, base))
	// App user in the right pool, different sequence: still visible.
	mustEnqueue(t, p, entry(102, enums.KindAppUser, 1, 99, base))

	got := p.Candidates(requester(1, 10))
	if len(got) != 1 || got[0].ParticipantID != 102 {
		t.Fatalf("unexpected candidates: %+v", got)
	}
}

func TestCandidatesExcludeRequester(t *testing.T) {
	p := NewPool()
	mustEnqueue(t, p, entry(1, enums.KindAppUser, 1, 10, time.Time{}))

	if got := p.Candidates(requester(1, 10)); len(got) != 0 {
		t.Fatalf("requester must not be their own candidate: %+v", got)
	}
}

func TestEnqueueStampsTime(t *testing.T) {
	p := NewPool()
	fixed := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	mustEnqueue(t, p, entry(101, enums.KindAppUser, 1, 10, time.Time{}))

	got, err := p.Dequeue(101)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if !got.EnqueuedAt.Equal(fixed) {
		t.Fatalf("unexpected enqueue time: %v", got.EnqueuedAt)
	}
}

func mustEnqueue(t *testing.T, p *Pool, e model.WaitingEntry) {
	t.Helper()
	if err := p.Enqueue(e); err != nil {
		t.Fatalf("enqueue %d: %v", e.ParticipantID, err)
	}
}
