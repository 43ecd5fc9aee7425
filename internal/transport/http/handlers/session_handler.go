package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	authsvc "github.com/MSK-101/Juicy-meets-web-sub002/internal/services/auth"
	matchingsvc "github.com/MSK-101/Juicy-meets-web-sub002/internal/services/matching"
	sessionsvc "github.com/MSK-101/Juicy-meets-web-sub002/internal/services/sessions"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/transport/http/dto"
	httperrors "github.com/MSK-101/Juicy-meets-web-sub002/internal/transport/http/errors"
)

type SessionHandler struct {
	engine *matchingsvc.Engine
}

func NewSessionHandler(engine *matchingsvc.Engine) *SessionHandler {
	return &SessionHandler{engine: engine}
}

func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.engine == nil {
		writeInternal(w, "MATCHING_UNAVAILABLE", "matching engine is unavailable")
		return
	}

	sessionID := strings.TrimSpace(chi.URLParam(r, "session_id"))
	if sessionID == "" {
		writeBadRequest(w, "VALIDATION_ERROR", "session_id is required")
		return
	}

	var req dto.SessionEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Event) == "" {
		writeBadRequest(w, "VALIDATION_ERROR", "event is required")
		return
	}

	err := h.engine.HandleSessionEvent(r.Context(), identity.ParticipantID, sessionID, req.Event)
	if err != nil {
		switch {
		case errors.Is(err, sessionsvc.ErrSessionNotFound):
			writeNotFound(w, "SESSION_NOT_FOUND", "session not found")
		case errors.Is(err, matchingsvc.ErrNotInSession):
			httperrors.Write(w, http.StatusForbidden, httperrors.APIError{
				Code:    "NOT_IN_SESSION",
				Message: "participant is not part of the session",
			})
		case errors.Is(err, matchingsvc.ErrUnknownEvent):
			writeBadRequest(w, "VALIDATION_ERROR", "unsupported session event")
		case errors.Is(err, sessionsvc.ErrInvalidTransition):
			httperrors.Write(w, http.StatusConflict, httperrors.APIError{
				Code:    "INVALID_STATE",
				Message: "event is not valid in the current connection state",
			})
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to apply session event")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.SessionEventResponse{OK: true})
}
