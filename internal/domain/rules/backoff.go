package rules

import "time"

const (
	DefaultMatchAttempts    = 3
	DefaultMatchBackoffBase = time.Second
)

// Backoff is a bounded retry policy with exponential delays. Delay(attempt)
// doubles the base per completed attempt: base, 2*base, 4*base, ...
type Backoff struct {
	MaxAttempts int
	Base        time.Duration
}

func NewBackoff(maxAttempts int, base time.Duration) Backoff {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMatchAttempts
	}
	if base <= 0 {
		base = DefaultMatchBackoffBase
	}
	return Backoff{MaxAttempts: maxAttempts, Base: base}
}

func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return b.Base << uint(attempt)
}
