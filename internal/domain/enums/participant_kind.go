package enums

type ParticipantKind string

const (
	KindAppUser ParticipantKind = "app_user"
	KindStaff   ParticipantKind = "staff"
	KindVideo   ParticipantKind = "video"
)
