// Package backoff computes the retry schedule for lock acquisition.
//
// A Policy is pure data: given the same configuration and attempt number it
// always produces the same delay, so schedules are reproducible in tests and
// reusable across unrelated lock attempts.
package backoff

import (
	"hash/fnv"
	"math"
	"time"
)

// Policy describes a deterministic retry schedule.
type Policy struct {
	// BaseDelay is the delay before the second attempt.
	BaseDelay time.Duration
	// Multiplier scales the delay for each subsequent attempt.
	// A multiplier of 1 yields a fixed delay.
	Multiplier float64
	// MaxDelay caps the computed delay. Zero means no cap.
	MaxDelay time.Duration
	// MaxAttempts is the total number of acquisition attempts allowed.
	MaxAttempts int
	// Jitter is the maximum fraction (0..1) by which a delay may deviate
	// from its computed value. The deviation is derived from the attempt
	// number, keeping the schedule deterministic.
	Jitter float64
}

// Default returns the policy used when nothing is configured: five attempts
// with a fixed 100ms delay.
func Default() Policy {
	return Policy{
		BaseDelay:   100 * time.Millisecond,
		Multiplier:  1.0,
		MaxDelay:    5 * time.Second,
		MaxAttempts: 5,
	}
}

// ShouldRetry reports whether another attempt is allowed after `attempt`
// attempts have already been made.
func (p Policy) ShouldRetry(attempt int) bool {
	return attempt < p.MaxAttempts
}

// NextDelay returns the delay to wait after the given attempt (1-based).
func (p Policy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	base := float64(p.BaseDelay)
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1.0
	}

	d := base * math.Pow(mult, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}

	if p.Jitter > 0 {
		d *= 1 + p.Jitter*jitterFactor(attempt)
	}

	if d < 0 {
		return 0
	}
	return time.Duration(d)
}

// jitterFactor maps an attempt number to a stable value in [-1, 1).
func jitterFactor(attempt int) float64 {
	h := fnv.New64a()
	var buf [8]byte
	v := uint64(attempt)
	for i := range buf {
		buf[i] = byte(v >> (8 * i))
	}
	h.Write(buf[:])
	return float64(h.Sum64()%2000)/1000 - 1
}
