package handlers

import (
	"errors"
	"io"
	"net/http"

	authsvc "github.com/MSK-101/Juicy-meets-web-sub002/internal/services/auth"
	matchingsvc "github.com/MSK-101/Juicy-meets-web-sub002/internal/services/matching"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/services/participants"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/services/queue"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/transport/http/dto"
	httperrors "github.com/MSK-101/Juicy-meets-web-sub002/internal/transport/http/errors"
)

type MatchHandler struct {
	engine    *matchingsvc.Engine
	directory *participants.Directory
}

func NewMatchHandler(engine *matchingsvc.Engine, directory *participants.Directory) *MatchHandler {
	return &MatchHandler{engine: engine, directory: directory}
}

// Join puts the caller into the waiting pool and tries to match them. Swipe
// is the same operation; the engine tears down any current session first.
func (h *MatchHandler) Join(w http.ResponseWriter, r *http.Request) {
	h.requestMatch(w, r)
}

func (h *MatchHandler) Swipe(w http.ResponseWriter, r *http.Request) {
	h.requestMatch(w, r)
}

func (h *MatchHandler) Leave(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.engine == nil {
		writeInternal(w, "MATCHING_UNAVAILABLE", "matching engine is unavailable")
		return
	}

	if err := h.engine.LeaveQueue(r.Context(), identity.ParticipantID); err != nil {
		switch {
		case errors.Is(err, queue.ErrNotWaiting):
			httperrors.Write(w, http.StatusConflict, httperrors.APIError{
				Code:    "NOT_WAITING",
				Message: "participant is not in the waiting pool",
			})
		case errors.Is(err, participants.ErrNotFound):
			writeNotFound(w, "PARTICIPANT_NOT_FOUND", "participant not found")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to leave the queue")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.LeaveQueueResponse{OK: true})
}

func (h *MatchHandler) requestMatch(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.engine == nil {
		writeInternal(w, "MATCHING_UNAVAILABLE", "matching engine is unavailable")
		return
	}

	var req dto.MatchRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	// Pool and sequence are server-assigned; the request may only echo
	// them. A contradicting value is a client bug, not a preference.
	if h.directory != nil && (req.PoolID != 0 || req.DesiredSequenceID != 0) {
		p, err := h.directory.Get(r.Context(), identity.ParticipantID)
		if err != nil {
			if errors.Is(err, participants.ErrNotFound) {
				writeNotFound(w, "PARTICIPANT_NOT_FOUND", "participant not found")
			} else {
				writeInternal(w, "INTERNAL_ERROR", "failed to load participant")
			}
			return
		}
		if req.PoolID != 0 && req.PoolID != p.PoolID {
			writeBadRequest(w, "POOL_MISMATCH", "pool_id does not match the participant's assigned pool")
			return
		}
		if req.DesiredSequenceID != 0 && req.DesiredSequenceID != p.SequenceID {
			writeBadRequest(w, "SEQUENCE_MISMATCH", "desired_sequence_id does not match the participant's current sequence")
			return
		}
	}

	result, err := h.engine.RequestMatch(r.Context(), identity.ParticipantID)
	if err != nil {
		switch {
		case errors.Is(err, matchingsvc.ErrNoMatchFound):
			httperrors.Write(w, http.StatusOK, dto.MatchResponse{Status: "waiting"})
		case errors.Is(err, matchingsvc.ErrAlreadyWaiting):
			httperrors.Write(w, http.StatusConflict, httperrors.APIError{
				Code:    "ALREADY_WAITING",
				Message: "participant is already in the waiting pool",
			})
		case errors.Is(err, matchingsvc.ErrSuperseded):
			httperrors.Write(w, http.StatusConflict, httperrors.APIError{
				Code:    "SUPERSEDED",
				Message: "a newer match request replaced this one",
			})
		case errors.Is(err, participants.ErrNotFound):
			writeNotFound(w, "PARTICIPANT_NOT_FOUND", "participant not found")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to process match request")
		}
		return
	}

	resp := dto.MatchResponse{
		Status:      "matched",
		SessionID:   result.SessionID,
		SessionType: string(result.SessionType),
		PeerID:      result.PeerID,
		VideoID:     result.VideoID,
		VideoURL:    result.PlaybackURL,
	}
	if h.directory != nil {
		if p, ok := h.directory.Peek(identity.ParticipantID); ok {
			resp.Progress = &dto.ProgressResponse{
				SequenceID:    p.SequenceID,
				VideosWatched: p.VideosWatched,
				TotalVideos:   p.SequenceTotalVideos,
			}
		}
	}

	httperrors.Write(w, http.StatusOK, resp)
}
