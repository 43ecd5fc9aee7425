package videos

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/enums"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/model"
)

var ErrVideoNotFound = errors.New("fallback video not found")

// Store is the catalog of fallback videos.
type Store interface {
	ListActive(ctx context.Context) ([]model.FallbackVideo, error)
	GetByID(ctx context.Context, videoID int64) (model.FallbackVideo, error)
}

// PlaybackResolver turns a stored object key into a client-playable URL.
type PlaybackResolver interface {
	PlaybackURL(ctx context.Context, objectKey string) (string, error)
}

// Queue is the waiting pool surface the library feeds video entries into.
type Queue interface {
	Enqueue(entry model.WaitingEntry) error
	Contains(participantID int64) bool
}

// Library owns fallback video placement. Each active video occupies one
// waiting-pool slot under a synthetic negative participant id, so it flows
// through the matcher like any other candidate.
type Library struct {
	store    Store
	playback PlaybackResolver
	queue    Queue
	logger   *zap.Logger
}

func NewLibrary(store Store, playback PlaybackResolver, queue Queue, logger *zap.Logger) *Library {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Library{store: store, playback: playback, queue: queue, logger: logger}
}

// EntryID maps a video id onto the synthetic participant id space. Real
// participants are positive, video entries negative; the two never collide.
func EntryID(videoID int64) int64 {
	return -videoID
}

// VideoID inverts EntryID. Zero means the entry is not a video entry.
func VideoID(entryID int64) int64 {
	if entryID >= 0 {
		return 0
	}
	return -entryID
}

// SeedPool enqueues every active video that is not already waiting. Called
// at startup and safe to call again after reloads.
func (l *Library) SeedPool(ctx context.Context) error {
	if l.store == nil {
		return nil
	}

	videos, err := l.store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list fallback videos: %w", err)
	}

	seeded := 0
	for _, v := range videos {
		if l.queue.Contains(EntryID(v.ID)) {
			continue
		}
		if err := l.queue.Enqueue(videoEntry(v)); err != nil {
			l.logger.Warn("seed fallback video failed", zap.Int64("video_id", v.ID), zap.Error(err))
			continue
		}
		seeded++
	}

	l.logger.Info("fallback videos seeded", zap.Int("count", seeded), zap.Int("total", len(videos)))
	return nil
}

// Requeue puts a video back into the waiting pool after its session ends.
// Inactive or deleted videos are dropped silently.
func (l *Library) Requeue(ctx context.Context, videoID int64) {
	if l.store == nil || videoID <= 0 {
		return
	}

	v, err := l.store.GetByID(ctx, videoID)
	if err != nil || !v.Active {
		return
	}

	if err := l.queue.Enqueue(videoEntry(v)); err != nil {
		l.logger.Warn("requeue fallback video failed", zap.Int64("video_id", videoID), zap.Error(err))
	}
}

// PlaybackURL resolves the video's presigned playback URL. It degrades to an
// empty URL when no resolver is wired.
func (l *Library) PlaybackURL(ctx context.Context, videoID int64) (string, error) {
	if l.store == nil {
		return "", ErrVideoNotFound
	}

	v, err := l.store.GetByID(ctx, videoID)
	if err != nil {
		return "", fmt.Errorf("%w: %d", ErrVideoNotFound, videoID)
	}

	if l.playback == nil {
		return "", nil
	}
	url, err := l.playback.PlaybackURL(ctx, v.ObjectKey)
	if err != nil {
		return "", fmt.Errorf("resolve playback url: %w", err)
	}
	return url, nil
}

func videoEntry(v model.FallbackVideo) model.WaitingEntry {
	return model.WaitingEntry{
		ParticipantID: EntryID(v.ID),
		Kind:          enums.KindVideo,
		PoolID:        v.PoolID,
		SequenceID:    v.SequenceID,
		VideoID:       v.ID,
	}
}
