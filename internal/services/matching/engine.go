package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/enums"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/model"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/rules"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/services/billing"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/services/pairings"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/services/participants"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/services/queue"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/services/sequences"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/services/sessions"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/services/videos"
)

var (
	ErrAlreadyWaiting = errors.New("participant already waiting for a match")
	ErrNoMatchFound   = errors.New("no match found")
	ErrSuperseded     = errors.New("match request superseded")
	ErrNotInSession   = errors.New("participant is not part of the session")
	ErrUnknownEvent   = errors.New("unknown session event")

	errNoCandidate          = errors.New("no candidate available")
	errCandidateUnavailable = errors.New("candidate no longer available")
)

// Publisher delivers match notifications to the signaling channel.
type Publisher interface {
	PublishMatch(ctx context.Context, event model.MatchEvent) error
}

// MatchResult is what the requester gets back. PlaybackURL is set only for
// video sessions.
type MatchResult struct {
	SessionID   string
	SessionType enums.SessionType
	PeerID      int64
	VideoID     int64
	PlaybackURL string
}

type Dependencies struct {
	Directory *participants.Directory
	Pool      *queue.Pool
	Ledger    *pairings.Ledger
	Sessions  *sessions.Registry
	Sequences *sequences.Tracker
	Billing   *billing.Engine
	Videos    *videos.Library
	Publisher Publisher
	Logger    *zap.Logger
}

type Config struct {
	Backoff rules.Backoff
}

// Engine runs match transactions: it takes the requester through teardown of
// their current session, the waiting pool, candidate selection and the
// locked commit. Every attempt re-validates its candidate after locking, and
// a request that is superseded mid-flight by a newer one from the same
// participant abandons itself at commit time.
type Engine struct {
	directory *participants.Directory
	pool      *queue.Pool
	ledger    *pairings.Ledger
	sessions  *sessions.Registry
	sequences *sequences.Tracker
	billing   *billing.Engine
	videos    *videos.Library
	publisher Publisher

	backoff rules.Backoff
	logger  *zap.Logger
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	newID   func() string
}

func NewEngine(deps Dependencies, cfg Config) *Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	backoff := cfg.Backoff
	if backoff.MaxAttempts <= 0 || backoff.Base <= 0 {
		backoff = rules.NewBackoff(backoff.MaxAttempts, backoff.Base)
	}

	return &Engine{
		directory: deps.Directory,
		pool:      deps.Pool,
		ledger:    deps.Ledger,
		sessions:  deps.Sessions,
		sequences: deps.Sequences,
		billing:   deps.Billing,
		videos:    deps.Videos,
		publisher: deps.Publisher,
		backoff:   backoff,
		logger:    deps.Logger,
		now:       time.Now,
		sleep:     sleepContext,
		newID:     uuid.NewString,
	}
}

// RequestMatch is the swipe entry point. It ends the requester's current
// session (re-queueing the abandoned side), puts the requester into the
// waiting pool and runs bounded match attempts with exponential backoff.
// When every attempt comes up empty the requester stays waiting and
// ErrNoMatchFound is returned.
func (e *Engine) RequestMatch(ctx context.Context, participantID int64) (MatchResult, error) {
	p, err := e.directory.Get(ctx, participantID)
	if err != nil {
		return MatchResult{}, err
	}

	reqSeq := e.directory.BeginRequest(participantID)

	if current, ok := e.sessions.ActiveFor(participantID); ok {
		e.endSession(ctx, current, participantID, true)
	}

	if err := e.pool.Enqueue(waitingEntry(p)); err != nil {
		if errors.Is(err, queue.ErrAlreadyWaiting) {
			return MatchResult{}, ErrAlreadyWaiting
		}
		return MatchResult{}, err
	}
	if err := e.directory.SetStatus(ctx, participantID, enums.StatusWaiting); err != nil {
		return MatchResult{}, err
	}
	if err := e.sessions.Transition(participantID, enums.ConnConnecting); err != nil && !errors.Is(err, sessions.ErrInvalidTransition) {
		return MatchResult{}, err
	}

	for attempt := 0; attempt < e.backoff.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := e.sleep(ctx, e.backoff.Delay(attempt-1)); err != nil {
				return MatchResult{}, err
			}
		}

		result, err := e.attempt(ctx, p, reqSeq)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, ErrSuperseded) {
			return MatchResult{}, ErrSuperseded
		}
		if !retryable(err) {
			return MatchResult{}, err
		}

		e.logger.Debug("match attempt failed",
			zap.Int64("participant_id", participantID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	return MatchResult{}, ErrNoMatchFound
}

// LeaveQueue withdraws the participant from the waiting pool. Any in-flight
// match attempt for them is superseded first so it cannot commit afterwards.
func (e *Engine) LeaveQueue(ctx context.Context, participantID int64) error {
	e.directory.BeginRequest(participantID)

	if _, err := e.pool.Dequeue(participantID); err != nil {
		return err
	}
	if err := e.directory.SetStatus(ctx, participantID, enums.StatusIdle); err != nil {
		return err
	}
	if err := e.sessions.Transition(participantID, enums.ConnDisconnected); err != nil && !errors.Is(err, sessions.ErrInvalidTransition) {
		return err
	}
	return nil
}

// HandleSessionEvent applies a client-reported connection event to the
// participant's session.
func (e *Engine) HandleSessionEvent(ctx context.Context, participantID int64, sessionID, event string) error {
	session, ok := e.sessions.Get(sessionID)
	if !ok {
		return sessions.ErrSessionNotFound
	}
	if !session.References(participantID) {
		return ErrNotInSession
	}

	switch event {
	case "connected":
		if err := e.sessions.Transition(participantID, enums.ConnConnected); err != nil {
			return err
		}
		if e.billing != nil && session.Type != enums.SessionVideo && e.isAppUser(participantID) {
			e.billing.StartTracking(participantID, sessionID)
		}
		return nil

	case "failed":
		if err := e.sessions.Transition(participantID, enums.ConnFailed); err != nil && !errors.Is(err, sessions.ErrInvalidTransition) {
			return err
		}
		e.endSession(ctx, session, participantID, true)
		return nil

	case "leave":
		e.endSession(ctx, session, participantID, true)
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
}

// ForceEnd terminates a session administratively, without re-queueing either
// side. Used by the janitor for overlong sessions.
func (e *Engine) ForceEnd(ctx context.Context, sessionID, reason string) error {
	session, ok := e.sessions.Get(sessionID)
	if !ok {
		return sessions.ErrSessionNotFound
	}

	e.logger.Warn("force-ending session",
		zap.String("session_id", sessionID),
		zap.String("reason", reason))
	e.endSession(ctx, session, 0, false)
	return nil
}

func (e *Engine) attempt(ctx context.Context, requester model.Participant, reqSeq uint64) (MatchResult, error) {
	candidates := e.pool.Candidates(requester)
	if len(candidates) == 0 {
		return MatchResult{}, errNoCandidate
	}

	// Only the best tier present competes; within it, gender preference
	// buckets rank ahead of queue age.
	top := queue.TierOf(requester, candidates[0])
	sameTier := candidates[:0:0]
	for _, cand := range candidates {
		if queue.TierOf(requester, cand) == top {
			sameTier = append(sameTier, cand)
		}
	}
	sort.SliceStable(sameTier, func(i, j int) bool {
		bi := rules.BucketFor(requester.Gender, requester.GenderPreference, sameTier[i].Gender)
		bj := rules.BucketFor(requester.Gender, requester.GenderPreference, sameTier[j].Gender)
		if bi != bj {
			return bi < bj
		}
		return sameTier[i].EnqueuedAt.Before(sameTier[j].EnqueuedAt)
	})

	// Recently paired candidates step aside unless they are all that is
	// left, in which case a repeat beats no match at all.
	fresh := make([]model.WaitingEntry, 0, len(sameTier))
	for _, cand := range sameTier {
		if cand.ParticipantID > 0 && e.ledger != nil && e.ledger.IsLive(ctx, requester.ID, cand.ParticipantID) {
			continue
		}
		fresh = append(fresh, cand)
	}
	if len(fresh) == 0 {
		fresh = sameTier
	}

	chosen := fresh[0]
	if chosen.Kind == enums.KindVideo {
		return e.commitVideo(ctx, requester, reqSeq, chosen)
	}
	return e.commitPair(ctx, requester, reqSeq, chosen)
}

func (e *Engine) commitPair(ctx context.Context, requester model.Participant, reqSeq uint64, cand model.WaitingEntry) (MatchResult, error) {
	release, err := e.directory.AcquirePair(ctx, requester.ID, cand.ParticipantID)
	if err != nil {
		if errors.Is(err, participants.ErrLockTimeout) {
			return MatchResult{}, fmt.Errorf("%w: %v", errCandidateUnavailable, err)
		}
		return MatchResult{}, err
	}
	defer release()

	// Everything below runs under both participants' locks; re-validate
	// what was observed before locking.
	if e.directory.CurrentRequest(requester.ID) != reqSeq {
		return MatchResult{}, ErrSuperseded
	}
	if !e.pool.Contains(requester.ID) {
		return MatchResult{}, ErrSuperseded
	}
	if !e.pool.Contains(cand.ParticipantID) {
		return MatchResult{}, errCandidateUnavailable
	}
	if _, busy := e.sessions.ActiveFor(cand.ParticipantID); busy {
		return MatchResult{}, errCandidateUnavailable
	}

	peer, err := e.directory.Get(ctx, cand.ParticipantID)
	if err != nil {
		return MatchResult{}, fmt.Errorf("%w: %v", errCandidateUnavailable, err)
	}

	requesterEntry, err := e.pool.Dequeue(requester.ID)
	if err != nil {
		return MatchResult{}, ErrSuperseded
	}
	peerEntry, err := e.pool.Dequeue(cand.ParticipantID)
	if err != nil {
		_ = e.pool.Enqueue(requesterEntry)
		return MatchResult{}, errCandidateUnavailable
	}

	session := model.Session{
		ID:           e.newID(),
		ParticipantA: requester.ID,
		ParticipantB: peer.ID,
		Type:         sessionTypeFor(peer.Kind),
		PoolID:       requester.PoolID,
		SequenceID:   requester.SequenceID,
		CreatedAt:    e.now().UTC(),
	}

	if err := e.sessions.Create(ctx, session); err != nil {
		_ = e.pool.Enqueue(requesterEntry)
		_ = e.pool.Enqueue(peerEntry)
		if errors.Is(err, sessions.ErrActiveSession) {
			e.logger.Error("stale session blocked a match commit",
				zap.Int64("requester_id", requester.ID),
				zap.Int64("peer_id", peer.ID))
			e.sessions.ForceEndFor(ctx, requester.ID)
			e.sessions.ForceEndFor(ctx, peer.ID)
			return MatchResult{}, errCandidateUnavailable
		}
		return MatchResult{}, err
	}

	if err := e.directory.SetStatus(ctx, requester.ID, enums.StatusMatched); err != nil {
		e.logger.Warn("set requester status failed", zap.Int64("participant_id", requester.ID), zap.Error(err))
	}
	if err := e.directory.SetStatus(ctx, peer.ID, enums.StatusMatched); err != nil {
		e.logger.Warn("set peer status failed", zap.Int64("participant_id", peer.ID), zap.Error(err))
	}
	if err := e.sessions.Transition(peer.ID, enums.ConnConnecting); err != nil && !errors.Is(err, sessions.ErrInvalidTransition) {
		e.logger.Warn("peer transition failed", zap.Int64("participant_id", peer.ID), zap.Error(err))
	}

	if e.ledger != nil {
		e.ledger.Record(ctx, requester.ID, peer.ID)
	}

	e.advanceRequester(ctx, requester)
	e.publishMatch(ctx, model.MatchEvent{
		SessionID:      session.ID,
		ParticipantIDs: []int64{requester.ID, peer.ID},
		SessionType:    session.Type,
	})

	e.logger.Info("match committed",
		zap.String("session_id", session.ID),
		zap.Int64("requester_id", requester.ID),
		zap.Int64("peer_id", peer.ID),
		zap.String("session_type", string(session.Type)))

	return MatchResult{
		SessionID:   session.ID,
		SessionType: session.Type,
		PeerID:      peer.ID,
	}, nil
}

func (e *Engine) commitVideo(ctx context.Context, requester model.Participant, reqSeq uint64, cand model.WaitingEntry) (MatchResult, error) {
	release, err := e.directory.Acquire(ctx, requester.ID)
	if err != nil {
		if errors.Is(err, participants.ErrLockTimeout) {
			return MatchResult{}, fmt.Errorf("%w: %v", errCandidateUnavailable, err)
		}
		return MatchResult{}, err
	}
	defer release()

	if e.directory.CurrentRequest(requester.ID) != reqSeq {
		return MatchResult{}, ErrSuperseded
	}
	if !e.pool.Contains(requester.ID) {
		return MatchResult{}, ErrSuperseded
	}
	if !e.pool.Contains(cand.ParticipantID) {
		return MatchResult{}, errCandidateUnavailable
	}

	requesterEntry, err := e.pool.Dequeue(requester.ID)
	if err != nil {
		return MatchResult{}, ErrSuperseded
	}
	if _, err := e.pool.Dequeue(cand.ParticipantID); err != nil {
		_ = e.pool.Enqueue(requesterEntry)
		return MatchResult{}, errCandidateUnavailable
	}

	session := model.Session{
		ID:           e.newID(),
		ParticipantA: requester.ID,
		VideoID:      cand.VideoID,
		Type:         enums.SessionVideo,
		PoolID:       requester.PoolID,
		SequenceID:   requester.SequenceID,
		CreatedAt:    e.now().UTC(),
	}

	if err := e.sessions.Create(ctx, session); err != nil {
		_ = e.pool.Enqueue(requesterEntry)
		if e.videos != nil {
			e.videos.Requeue(ctx, cand.VideoID)
		}
		return MatchResult{}, errCandidateUnavailable
	}

	if err := e.directory.SetStatus(ctx, requester.ID, enums.StatusMatched); err != nil {
		e.logger.Warn("set requester status failed", zap.Int64("participant_id", requester.ID), zap.Error(err))
	}

	// Video playback has no handshake; the connection is up as soon as the
	// client has the URL.
	if err := e.sessions.Transition(requester.ID, enums.ConnConnected); err != nil && !errors.Is(err, sessions.ErrInvalidTransition) {
		e.logger.Warn("requester transition failed", zap.Int64("participant_id", requester.ID), zap.Error(err))
	}
	if e.billing != nil && requester.Kind == enums.KindAppUser {
		e.billing.StartTracking(requester.ID, session.ID)
	}

	e.advanceRequester(ctx, requester)
	e.publishMatch(ctx, model.MatchEvent{
		SessionID:      session.ID,
		ParticipantIDs: []int64{requester.ID},
		SessionType:    enums.SessionVideo,
	})

	var playbackURL string
	if e.videos != nil {
		playbackURL, err = e.videos.PlaybackURL(ctx, cand.VideoID)
		if err != nil {
			e.logger.Warn("resolve playback url failed", zap.Int64("video_id", cand.VideoID), zap.Error(err))
			playbackURL = ""
		}
	}

	e.logger.Info("video match committed",
		zap.String("session_id", session.ID),
		zap.Int64("requester_id", requester.ID),
		zap.Int64("video_id", cand.VideoID))

	return MatchResult{
		SessionID:   session.ID,
		SessionType: enums.SessionVideo,
		VideoID:     cand.VideoID,
		PlaybackURL: playbackURL,
	}, nil
}

// endSession tears a session down. The leaver goes idle; the abandoned side
// is put back into the waiting pool when requeuePeer is set, and a video
// session's content returns to the pool.
func (e *Engine) endSession(ctx context.Context, session model.Session, leaverID int64, requeuePeer bool) {
	ended, err := e.sessions.End(ctx, session.ID)
	if err != nil {
		return
	}

	for _, id := range []int64{ended.ParticipantA, ended.ParticipantB} {
		if id <= 0 {
			continue
		}
		if e.billing != nil {
			e.billing.StopTracking(id)
		}
		if err := e.sessions.Transition(id, enums.ConnDisconnected); err != nil && !errors.Is(err, sessions.ErrInvalidTransition) {
			e.logger.Warn("disconnect transition failed", zap.Int64("participant_id", id), zap.Error(err))
		}
		if err := e.directory.SetStatus(ctx, id, enums.StatusIdle); err != nil {
			e.logger.Warn("set idle status failed", zap.Int64("participant_id", id), zap.Error(err))
		}
	}

	if ended.VideoID > 0 && e.videos != nil {
		e.videos.Requeue(ctx, ended.VideoID)
	}

	if !requeuePeer || leaverID <= 0 {
		return
	}
	peerID := ended.Peer(leaverID)
	if peerID <= 0 {
		return
	}

	peer, err := e.directory.Get(ctx, peerID)
	if err != nil {
		e.logger.Warn("load abandoned peer failed", zap.Int64("participant_id", peerID), zap.Error(err))
		return
	}
	if err := e.pool.Enqueue(waitingEntry(peer)); err != nil && !errors.Is(err, queue.ErrAlreadyWaiting) {
		e.logger.Warn("requeue abandoned peer failed", zap.Int64("participant_id", peerID), zap.Error(err))
		return
	}
	if err := e.directory.SetStatus(ctx, peerID, enums.StatusWaiting); err != nil {
		e.logger.Warn("set peer status failed", zap.Int64("participant_id", peerID), zap.Error(err))
	}
	if err := e.sessions.Transition(peerID, enums.ConnConnecting); err != nil && !errors.Is(err, sessions.ErrInvalidTransition) {
		e.logger.Warn("peer transition failed", zap.Int64("participant_id", peerID), zap.Error(err))
	}
}

// advanceRequester records one consumed slot of the requester's sequence.
// Runs strictly after the session exists, so a failed commit never moves
// progression.
func (e *Engine) advanceRequester(ctx context.Context, requester model.Participant) {
	if e.sequences == nil || requester.Kind != enums.KindAppUser {
		return
	}

	progress, err := e.sequences.Advance(ctx, requester)
	if err != nil {
		e.logger.Warn("sequence progression failed", zap.Int64("participant_id", requester.ID), zap.Error(err))
		return
	}
	if err := e.directory.ApplyProgress(ctx, requester.ID, progress.SequenceID, progress.Watched, progress.TotalVideos); err != nil {
		e.logger.Warn("apply sequence progress failed", zap.Int64("participant_id", requester.ID), zap.Error(err))
	}
}

func (e *Engine) publishMatch(ctx context.Context, event model.MatchEvent) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishMatch(ctx, event); err != nil {
		e.logger.Warn("publish match event failed", zap.String("session_id", event.SessionID), zap.Error(err))
	}
}

func (e *Engine) isAppUser(participantID int64) bool {
	p, ok := e.directory.Peek(participantID)
	return ok && p.Kind == enums.KindAppUser
}

func waitingEntry(p model.Participant) model.WaitingEntry {
	return model.WaitingEntry{
		ParticipantID: p.ID,
		Kind:          p.Kind,
		PoolID:        p.PoolID,
		SequenceID:    p.SequenceID,
		Gender:        p.Gender,
		Preference:    p.GenderPreference,
	}
}

func sessionTypeFor(kind enums.ParticipantKind) enums.SessionType {
	if kind == enums.KindStaff {
		return enums.SessionStaff
	}
	return enums.SessionRealUser
}

func retryable(err error) bool {
	return errors.Is(err, errNoCandidate) || errors.Is(err, errCandidateUnavailable)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
