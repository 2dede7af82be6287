package retry

import (
	"math/rand/v2"
	"time"
)

const (
	defaultBase = 500 * time.Millisecond
	defaultMax  = 10 * time.Second

	// jitterFraction bounds the random spread added on top of the capped
	// exponential delay.
	jitterFraction = 0.1
)

// Backoff computes retry delays: Base doubled per attempt, capped at Max,
// plus up to 10% random jitter. The zero value means no delay; use
// NewBackoff for the standard defaults. Stateless and safe for concurrent
// use.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// NewBackoff returns a Backoff with defaults applied for zero values
// (500ms base, 10s cap).
func NewBackoff(base, max time.Duration) Backoff {
	if base <= 0 {
		base = defaultBase
	}
	if max <= 0 {
		max = defaultMax
	}
	return Backoff{Base: base, Max: max}
}

// Delay returns the sleep duration before retrying after the given attempt.
// attempt is 1-indexed; values below 1 are treated as 1.
//
// Delay(n) = min(Max, Base * 2^(n-1)) + uniform(0, 10% of the capped value)
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		// Doubling a Duration can wrap negative; clamp on or past the cap.
		if d >= b.Max || d < 0 {
			d = b.Max
			break
		}
	}
	if d > b.Max {
		d = b.Max
	}

	jitter := time.Duration(rand.Float64() * jitterFraction * float64(d))
	return d + jitter
}
