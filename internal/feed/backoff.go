package feed

import (
	"sync"
	"time"
)

// Backoff scales the base polling interval by a multiplier that doubles on
// failure or throttle and snaps back to 1 on the first success. Bounded
// growth disincentivizes hammering a struggling server; full reset keeps
// recovery fast once the server is healthy again.
//
// One instance is shared by both feed loops — a failure on either feed
// slows both, matching the combined server quota.
type Backoff struct {
	mu         sync.Mutex
	base       time.Duration
	multiplier float64
	max        float64
}

// NewBackoff creates a backoff starting at multiplier 1.
func NewBackoff(base time.Duration, maxMultiplier float64) *Backoff {
	if maxMultiplier < 1 {
		maxMultiplier = 1
	}
	return &Backoff{
		base:       base,
		multiplier: 1,
		max:        maxMultiplier,
	}
}

// Interval returns the effective polling interval: base × multiplier.
func (b *Backoff) Interval() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.Duration(float64(b.base) * b.multiplier)
}

// Multiplier returns the current multiplier.
func (b *Backoff) Multiplier() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.multiplier
}

// OnSuccess resets the multiplier to 1 after one clean round-trip.
func (b *Backoff) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.multiplier = 1
}

// OnFailure doubles the multiplier, capped at the configured maximum.
func (b *Backoff) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.multiplier *= 2
	if b.multiplier > b.max {
		b.multiplier = b.max
	}
}

// Reset forces the multiplier back to 1 regardless of recent outcomes.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.multiplier = 1
}
