package model

import "github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/enums"

// MatchEvent is published to the external signaling channel once a session
// is committed. SDP/ICE exchange happens entirely on that channel.
type MatchEvent struct {
	SessionID      string            `json:"session_id"`
	ParticipantIDs []int64           `json:"participant_ids"`
	SessionType    enums.SessionType `json:"session_type"`
}

// BillingEvent notifies clients about a committed deduction. Partial means
// the balance could not cover the full amount and was clamped at zero.
type BillingEvent struct {
	ParticipantID int64  `json:"participant_id"`
	SessionID     string `json:"session_id"`
	RuleName      string `json:"rule_name,omitempty"`
	Coins         int64  `json:"coins"`
	Partial       bool   `json:"partial"`
	Balance       int64  `json:"balance"`
}
