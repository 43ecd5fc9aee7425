package sessions

import (
	"errors"

	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/enums"
)

var ErrInvalidTransition = errors.New("invalid connection state transition")

// allowedTransition encodes the per-participant connection table. There are
// no self-transitions; anything outside the table is rejected.
func allowedTransition(from, to enums.ConnectionState) bool {
	if from == to {
		return false
	}

	switch from {
	case enums.ConnDisconnected:
		return to == enums.ConnConnecting
	case enums.ConnConnecting:
		return to == enums.ConnConnected || to == enums.ConnFailed || to == enums.ConnDisconnected
	case enums.ConnConnected:
		return to == enums.ConnFailed || to == enums.ConnDisconnected
	case enums.ConnFailed:
		return to == enums.ConnDisconnected
	default:
		return false
	}
}
