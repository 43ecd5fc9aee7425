package model

import "github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/enums"

// Participant is a point-in-time snapshot of a directory record. Identity
// fields belong to the external user directory; the core owns status,
// sequence progress and coin balance.
type Participant struct {
	ID                  int64                   `json:"id"`
	Kind                enums.ParticipantKind   `json:"kind"`
	PoolID              int64                   `json:"pool_id"`
	SequenceID          int64                   `json:"sequence_id"`
	Gender              enums.Gender            `json:"gender"`
	GenderPreference    enums.GenderPreference  `json:"gender_preference"`
	CoinBalance         int64                   `json:"coin_balance"`
	VideosWatched       int                     `json:"videos_watched_in_current_sequence"`
	SequenceTotalVideos int                     `json:"sequence_total_videos"`
	Status              enums.ParticipantStatus `json:"status"`
}
