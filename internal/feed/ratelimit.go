// ratelimit.go tracks the server-side quota advertised by the Beam API.
//
// The API reports its quota on every response via x-ratelimit-remaining /
// x-ratelimit-reset headers, and an explicit retry-after on 429s. Both feed
// endpoints draw from one combined quota, so a single tracker instance is
// shared across them. This is observation-driven limiting, not a local
// token bucket: the tracker never blocks anyone, it only answers "should
// the caller slow down, and by how much".
package feed

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	// throttleFloor is the remaining-request count below which the client
	// proactively slows down before the server starts rejecting.
	throttleFloor = 10

	// maxProactiveWait caps waits derived from the reset timestamp so a
	// stale reset value can never stall the client indefinitely.
	maxProactiveWait = 5 * time.Second

	// defaultRemaining is assumed until the first observed response; high
	// enough that a fresh tracker never throttles.
	defaultRemaining = 100
)

// RateLimitTracker holds the latest observed quota state. All methods are
// safe for concurrent use by both feed loops; each field is independently
// overwritten, most recent observation wins.
type RateLimitTracker struct {
	mu         sync.Mutex
	remaining  int
	resetAtMs  int64         // epoch millis; zero until observed
	retryAfter time.Duration // one-shot server-declared delay; zero when none
	now        func() time.Time
}

// NewRateLimitTracker creates a tracker that never throttles until the
// server has been heard from.
func NewRateLimitTracker() *RateLimitTracker {
	return &RateLimitTracker{
		remaining: defaultRemaining,
		now:       time.Now,
	}
}

// Observe updates quota state from response headers. Absent or malformed
// headers leave the corresponding field unchanged — missing data must not
// be mistaken for an exhausted quota.
func (t *RateLimitTracker) Observe(h http.Header) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if v := h.Get("x-ratelimit-remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			t.remaining = n
		}
	}
	if v := h.Get("x-ratelimit-reset"); v != "" {
		// epoch seconds on the wire, stored as millis
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil && sec > 0 {
			t.resetAtMs = sec * 1000
		}
	}
	if v := h.Get("retry-after"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			t.retryAfter = time.Duration(sec) * time.Second
		}
	}
}

// ShouldThrottle reports whether the client should slow down before the
// server forces it to: fewer than throttleFloor requests left and the
// quota window has not yet reset.
func (t *RateLimitTracker) ShouldThrottle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shouldThrottleLocked()
}

func (t *RateLimitTracker) shouldThrottleLocked() bool {
	return t.remaining < throttleFloor && t.resetAtMs > t.now().UnixMilli()
}

// WaitTime returns how long the caller should hold off before the next
// request. A pending retry-after is authoritative and consumed by this
// read (one-shot override). Proactive waits derived from the reset
// timestamp are capped at maxProactiveWait.
func (t *RateLimitTracker) WaitTime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.retryAfter > 0 {
		d := t.retryAfter
		t.retryAfter = 0
		return d
	}
	if t.shouldThrottleLocked() {
		d := time.Duration(t.resetAtMs-t.now().UnixMilli()) * time.Millisecond
		if d > maxProactiveWait {
			d = maxProactiveWait
		}
		if d < 0 {
			d = 0
		}
		return d
	}
	return 0
}

// SetRetryAfter records a server-declared delay from a 429 outcome.
func (t *RateLimitTracker) SetRetryAfter(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.retryAfter = d
}

// ClearRetryAfter drops any pending server-declared delay. Called on the
// first clean round-trip after a 429.
func (t *RateLimitTracker) ClearRetryAfter() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.retryAfter = 0
}

// RetryAfterPending reports whether an unconsumed server delay is outstanding.
func (t *RateLimitTracker) RetryAfterPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.retryAfter > 0
}

// Snapshot returns the current quota state for the status dashboard.
func (t *RateLimitTracker) Snapshot() (remaining int, resetAtMs int64, retryAfter time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining, t.resetAtMs, t.retryAfter
}
