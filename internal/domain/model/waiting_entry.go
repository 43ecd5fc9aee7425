package model

import (
	"time"

	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/enums"
)

type WaitingEntry struct {
	ParticipantID int64                  `json:"participant_id"`
	Kind          enums.ParticipantKind  `json:"kind"`
	PoolID        int64                  `json:"pool_id"`
	SequenceID    int64                  `json:"sequence_id"`
	Gender        enums.Gender           `json:"gender"`
	Preference    enums.GenderPreference `json:"gender_preference"`
	EnqueuedAt    time.Time              `json:"enqueued_at"`

	// VideoID is set only for video-kind entries and points at the
	// fallback content this entry represents.
	VideoID int64 `json:"video_id,omitempty"`
}
