package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// DefaultBackoff is used when a component is not given an explicit backoff.
var DefaultBackoff = Backoff{
	BaseDelay: 100 * time.Millisecond,
	MaxDelay:  5 * time.Second,
}

// Backoff computes exponential delays with full jitter.
//
// The ceiling for attempt n (1-indexed) is min(MaxDelay, BaseDelay*2^n). The
// actual delay is drawn uniformly from [0, ceiling]. A zero BaseDelay yields
// no delay at all; a zero MaxDelay leaves the ceiling unbounded.
type Backoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Rand returns a value in [0, n). Defaults to math/rand/v2.Int64N.
	Rand func(n int64) int64
}

// Cap returns the upper bound of the delay for the given attempt.
func (b Backoff) Cap(attempt int) time.Duration {
	if b.BaseDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}

	d := b.BaseDelay
	for i := 0; i < attempt; i++ {
		if b.MaxDelay > 0 && d >= b.MaxDelay {
			return b.MaxDelay
		}
		if d > math.MaxInt64/2 {
			d = math.MaxInt64
			break
		}
		d *= 2
	}

	if b.MaxDelay > 0 && d > b.MaxDelay {
		return b.MaxDelay
	}
	return d
}

// Delay returns a full-jitter delay for the given attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	c := int64(b.Cap(attempt))
	if c <= 0 {
		return 0
	}

	n := c
	if n < math.MaxInt64 {
		n++ // inclusive upper bound
	}

	rnd := b.Rand
	if rnd == nil {
		rnd = rand.Int64N
	}
	return time.Duration(rnd(n))
}
