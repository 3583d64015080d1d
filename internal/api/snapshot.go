package api

import (
	"time"

	"github.com/beamdotfun/feedpoll/internal/feed"
)

// PollStatusProvider provides snapshot access to polling state
type PollStatusProvider interface {
	FeedsSnapshot() []FeedStatus
	Coordinator() *feed.Coordinator
	Events() <-chan StreamEvent
}

// FeedStatus is the per-feed slice of a snapshot.
type FeedStatus struct {
	Feed         string    `json:"feed"`
	Cursor       string    `json:"cursor"`
	LastOutcome  string    `json:"last_outcome"`
	LastPolledAt time.Time `json:"last_polled_at"`
	Polls        int       `json:"polls"`
	Failures     int       `json:"failures"`
}

// RateLimitInfo mirrors the tracker state for the dashboard.
type RateLimitInfo struct {
	Remaining    int   `json:"remaining"`
	ResetAtMs    int64 `json:"reset_at_ms"`
	RetryAfterMs int64 `json:"retry_after_ms"`
}

// Snapshot aggregates coordinator and per-feed state.
type Snapshot struct {
	Timestamp      time.Time     `json:"timestamp"`
	State          string        `json:"state"` // normal, backed_off, rate_limited
	IntervalMs     int64         `json:"interval_ms"`
	Multiplier     float64       `json:"multiplier"`
	ShouldThrottle bool          `json:"should_throttle"`
	RateLimit      RateLimitInfo `json:"rate_limit"`
	Feeds          []FeedStatus  `json:"feeds"`
}

// BuildSnapshot aggregates state from the provider into a dashboard snapshot
func BuildSnapshot(provider PollStatusProvider) Snapshot {
	coord := provider.Coordinator()
	remaining, resetAt, retryAfter := coord.RateLimitSnapshot()

	return Snapshot{
		Timestamp:      time.Now(),
		State:          string(coord.CurrentState()),
		IntervalMs:     coord.CurrentInterval().Milliseconds(),
		Multiplier:     coord.Multiplier(),
		ShouldThrottle: coord.ShouldThrottle(),
		RateLimit: RateLimitInfo{
			Remaining:    remaining,
			ResetAtMs:    resetAt,
			RetryAfterMs: retryAfter.Milliseconds(),
		},
		Feeds: provider.FeedsSnapshot(),
	}
}
