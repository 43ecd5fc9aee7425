package sessions

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
	ErrSessionNotFound = errors.New("session not found")
	ErrActiveSession   = errors.New("participant already has an active session")
)

// HistoryStore keeps the durable trail of rooms; nil disables persistence.
type HistoryStore interface {
	Insert(ctx context.Context, session model.Session) error
	MarkEnded(ctx context.Context, sessionID string, endedAt time.Time) error
}

// Registry owns live sessions and per-participant connection state. It
// enforces the one-active-session-per-participant invariant at creation and
// offers ForceEndFor to repair it if it is ever observed broken.
type Registry struct {
	mu            sync.Mutex
	sessions      map[string]model.Session
	byParticipant map[int64]string
	states        map[int64]enums.ConnectionState

	history HistoryStore
	logger  *zap.Logger
	now     func() time.Time
}

func NewRegistry(history HistoryStore, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registry{
		sessions:      make(map[string]model.Session),
		byParticipant: make(map[int64]string),
		states:        make(map[int64]enums.ConnectionState),
		history:       history,
		logger:        logger,
		now:           time.Now,
	}
}

func (r *Registry) Create(ctx context.Context, session model.Session) error {
	if session.ID == "" || session.ParticipantA <= 0 {
		return fmt.Errorf("invalid session payload")
	}

	r.mu.Lock()
	if _, ok := r.byParticipant[session.ParticipantA]; ok {
		r.mu.Unlock()
		return ErrActiveSession
	}
	if session.ParticipantB > 0 {
		if _, ok := r.byParticipant[session.ParticipantB]; ok {
			r.mu.Unlock()
			return ErrActiveSession
		}
	}

	r.sessions[session.ID] = session
	r.byParticipant[session.ParticipantA] = session.ID
	if session.ParticipantB > 0 {
		r.byParticipant[session.ParticipantB] = session.ID
	}
	r.mu.Unlock()

	if r.history != nil {
		if err := r.history.Insert(ctx, session); err != nil {
			r.logger.Warn("persist session failed", zap.String("session_id", session.ID), zap.Error(err))
		}
	}

	return nil
}

func (r *Registry) Get(sessionID string) (model.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	return session, ok
}

func (r *Registry) ActiveFor(participantID int64) (model.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byParticipant[participantID]
	if !ok {
		return model.Session{}, false
	}
	return r.sessions[id], true
}

// End marks the session ended and drops it from the live index.
func (r *Registry) End(ctx context.Context, sessionID string) (model.Session, error) {
	r.mu.Lock()
	session, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return model.Session{}, ErrSessionNotFound
	}

	endedAt := r.now().UTC()
	session.EndedAt = &endedAt
	delete(r.sessions, sessionID)
	delete(r.byParticipant, session.ParticipantA)
	if session.ParticipantB > 0 {
		delete(r.byParticipant, session.ParticipantB)
	}
	r.mu.Unlock()

	if r.history != nil {
		if err := r.history.MarkEnded(ctx, sessionID, endedAt); err != nil {
			r.logger.Warn("persist session end failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	return session, nil
}

// ForceEndFor ends every live session referencing the participant. It exists
// to restore the single-session invariant after corruption and is logged at
// error level because reaching it means the invariant broke.
func (r *Registry) ForceEndFor(ctx context.Context, participantID int64) []model.Session {
	r.mu.Lock()
	var stale []string
	for id, session := range r.sessions {
		if session.References(participantID) {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()

	ended := make([]model.Session, 0, len(stale))
	for _, id := range stale {
		session, err := r.End(ctx, id)
		if err != nil {
			continue
		}
		r.logger.Error("force-ended session to restore single-session invariant",
			zap.String("session_id", id),
			zap.Int64("participant_id", participantID))
		ended = append(ended, session)
	}
	return ended
}

// ActiveOlderThan returns live sessions created before the cutoff.
func (r *Registry) ActiveOlderThan(cutoff time.Time) []model.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.Session
	for _, session := range r.sessions {
		if session.CreatedAt.Before(cutoff) {
			out = append(out, session)
		}
	}
	return out
}

func (r *Registry) State(participantID int64) enums.ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.states[participantID]
	if !ok {
		return enums.ConnDisconnected
	}
	return state
}

// Transition moves the participant's connection state, rejecting anything
// outside the table with ErrInvalidTransition.
func (r *Registry) Transition(participantID int64, to enums.ConnectionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	from, ok := r.states[participantID]
	if !ok {
		from = enums.ConnDisconnected
	}
	if !allowedTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	if to == enums.ConnDisconnected {
		delete(r.states, participantID)
	} else {
		r.states[participantID] = to
	}
	return nil
}
