package model

import (
	"time"

	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/enums"
)

// Session is a matched room. ParticipantB is zero for video sessions, where
// VideoID carries the content reference instead of a person.
type Session struct {
	ID           string            `json:"id"`
	ParticipantA int64             `json:"participant_a"`
	ParticipantB int64             `json:"participant_b,omitempty"`
	VideoID      int64             `json:"video_id,omitempty"`
	Type         enums.SessionType `json:"session_type"`
	PoolID       int64             `json:"pool_id"`
	SequenceID   int64             `json:"sequence_id"`
	CreatedAt    time.Time         `json:"created_at"`
	EndedAt      *time.Time        `json:"ended_at,omitempty"`
}

func (s Session) Ended() bool {
	return s.EndedAt != nil
}

func (s Session) References(participantID int64) bool {
	return s.ParticipantA == participantID || (s.ParticipantB != 0 && s.ParticipantB == participantID)
}

// Peer returns the other human participant, or 0 for video sessions.
func (s Session) Peer(participantID int64) int64 {
	if s.ParticipantA == participantID {
		return s.ParticipantB
	}
	return s.ParticipantA
}
