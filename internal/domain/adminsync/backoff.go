package adminsync

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes when a failed record becomes eligible for reconciliation
// again: Base * 2^(attempt-1), capped at Max, with up to Jitter of the delay
// removed at random so records that failed together spread out.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64

	rand func() float64
}

func DefaultBackoff() Backoff {
	return Backoff{Base: 30 * time.Second, Max: time.Hour, Jitter: 0.2}
}

// Delay returns the wait after the given attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(b.Base) * math.Pow(2, float64(attempt-1))
	if b.Max > 0 && delay > float64(b.Max) {
		delay = float64(b.Max)
	}

	jitter := b.Jitter
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	if jitter > 0 {
		r := rand.Float64
		if b.rand != nil {
			r = b.rand
		}
		delay -= delay * jitter * r()
	}
	return time.Duration(delay)
}
