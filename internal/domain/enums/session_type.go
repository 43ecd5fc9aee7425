package enums

type SessionType string

const (
	SessionRealUser SessionType = "real_user"
	SessionStaff    SessionType = "staff"
	SessionVideo    SessionType = "video"
)
