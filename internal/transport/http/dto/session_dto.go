package dto

type SessionEventRequest struct {
	Event string `json:"event"`
}

type SessionEventResponse struct {
	OK bool `json:"ok"`
}
