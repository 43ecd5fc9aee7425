package sequences

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/enums"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/model"
)

var ErrNoActiveSequence = errors.New("pool has no active sequence")

// CatalogStore is the external pool/sequence read model.
type CatalogStore interface {
	GetPool(ctx context.Context, poolID int64) (model.PoolCatalog, error)
}

// Progress is the result of one watched-video step. Watched and SequenceID
// describe the participant's state after the step.
type Progress struct {
	SequenceID  int64
	Watched     int
	TotalVideos int
	Advanced    bool
	Wrapped     bool
}

// Tracker computes sequence progression for app users. It never mutates the
// directory itself; callers apply the returned progress under their own lock.
type Tracker struct {
	catalog CatalogStore
	logger  *zap.Logger
}

func NewTracker(catalog CatalogStore, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{catalog: catalog, logger: logger}
}

// Advance records one watched video for the participant and, when the count
// reaches the sequence's video total, moves to the next active sequence in
// the pool (wrapping past the end) with the count reset to zero. Staff and
// video participants never progress.
func (t *Tracker) Advance(ctx context.Context, p model.Participant) (Progress, error) {
	if p.Kind != enums.KindAppUser {
		return Progress{SequenceID: p.SequenceID, Watched: p.VideosWatched, TotalVideos: p.SequenceTotalVideos}, nil
	}

	watched := p.VideosWatched + 1
	progress := Progress{
		SequenceID:  p.SequenceID,
		Watched:     watched,
		TotalVideos: p.SequenceTotalVideos,
	}

	// A sequence with no known video total never completes.
	if p.SequenceTotalVideos <= 0 || watched < p.SequenceTotalVideos {
		return progress, nil
	}

	catalog, err := t.catalog.GetPool(ctx, p.PoolID)
	if err != nil {
		return Progress{}, fmt.Errorf("load pool catalog: %w", err)
	}

	next, ok := catalog.NextActiveAfter(p.SequenceID)
	if !ok {
		return Progress{}, ErrNoActiveSequence
	}

	progress.SequenceID = next.ID
	progress.Watched = 0
	progress.TotalVideos = next.VideoCount
	progress.Advanced = true
	progress.Wrapped = nextWraps(catalog, p.SequenceID, next.ID)

	t.logger.Info("sequence advanced",
		zap.Int64("participant_id", p.ID),
		zap.Int64("from_sequence", p.SequenceID),
		zap.Int64("to_sequence", next.ID),
		zap.Bool("wrapped", progress.Wrapped))

	return progress, nil
}

// nextWraps reports whether moving from -> to crossed the end of the pool.
func nextWraps(catalog model.PoolCatalog, from, to int64) bool {
	fromPos, toPos := -1, -1
	for i, seq := range catalog.Sequences {
		if seq.ID == from {
			fromPos = i
		}
		if seq.ID == to {
			toPos = i
		}
	}
	if fromPos < 0 {
		return false
	}
	return toPos <= fromPos
}
