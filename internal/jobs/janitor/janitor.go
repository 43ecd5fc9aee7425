package janitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/enums"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/model"
)

type sessionSource interface {
	ActiveOlderThan(cutoff time.Time) []model.Session
}

type sessionEnder interface {
	ForceEnd(ctx context.Context, sessionID, reason string) error
}

type queueSource interface {
	Entries() []model.WaitingEntry
	Dequeue(participantID int64) (model.WaitingEntry, error)
}

type directoryView interface {
	Peek(participantID int64) (model.Participant, bool)
}

// Job sweeps runtime state: sessions that exceeded the maximum duration are
// force-ended, and waiting entries whose participant is no longer in the
// waiting status are dropped from the pool.
type Job struct {
	sessions    sessionSource
	ender       sessionEnder
	queue       queueSource
	directory   directoryView
	maxDuration time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

func New(sessions sessionSource, ender sessionEnder, maxDuration time.Duration, logger *zap.Logger) *Job {
	if maxDuration <= 0 {
		maxDuration = 2 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		sessions:    sessions,
		ender:       ender,
		maxDuration: maxDuration,
		now:         time.Now,
		logger:      logger,
	}
}

// AttachQueuePruning enables the stale waiting-entry sweep.
func (j *Job) AttachQueuePruning(queue queueSource, directory directoryView) {
	j.queue = queue
	j.directory = directory
}

func (j *Job) Run(ctx context.Context) error {
	if j.sessions == nil || j.ender == nil {
		return fmt.Errorf("janitor is not wired")
	}

	cutoff := j.now().Add(-j.maxDuration)
	stale := j.sessions.ActiveOlderThan(cutoff)
	for _, session := range stale {
		if err := j.ender.ForceEnd(ctx, session.ID, "max duration exceeded"); err != nil {
			j.logger.Warn("force-end stale session failed", zap.String("session_id", session.ID), zap.Error(err))
		}
	}
	if len(stale) > 0 {
		j.logger.Info("stale sessions swept", zap.Int("count", len(stale)))
	}

	j.pruneQueue()
	return nil
}

// Loop runs the sweep on the given interval until the context ends.
func (j *Job) Loop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Warn("janitor sweep failed", zap.Error(err))
			}
		}
	}
}

func (j *Job) pruneQueue() {
	if j.queue == nil || j.directory == nil {
		return
	}

	pruned := 0
	for _, entry := range j.queue.Entries() {
		if entry.ParticipantID <= 0 {
			continue
		}
		p, ok := j.directory.Peek(entry.ParticipantID)
		if !ok || p.Status == enums.StatusWaiting {
			continue
		}
		if _, err := j.queue.Dequeue(entry.ParticipantID); err == nil {
			pruned++
		}
	}

	if pruned > 0 {
		j.logger.Info("stale waiting entries pruned", zap.Int("count", pruned))
	}
}
