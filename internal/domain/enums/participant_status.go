package enums

type ParticipantStatus string

const (
	StatusIdle    ParticipantStatus = "idle"
	StatusWaiting ParticipantStatus = "waiting"
	StatusMatched ParticipantStatus = "matched"
)
