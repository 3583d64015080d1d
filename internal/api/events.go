package api

import (
	"time"

	"github.com/beamdotfun/feedpoll/pkg/types"
)

// StreamEvent is the wrapper for all events sent to the dashboard
type StreamEvent struct {
	Type      string    `json:"type"`      // "snapshot", "poll", "backoff"
	Timestamp time.Time `json:"timestamp"` // Event time
	Feed      string    `json:"feed"`      // "public" or "watchlist" (empty for global events)
	Data      any       `json:"data"`      // Event-specific payload
}

// PollEvent describes one completed poll attempt.
type PollEvent struct {
	Feed       string  `json:"feed"`
	Outcome    string  `json:"outcome"` // success, rate_limited, auth_required, transport_error
	Count      int     `json:"count"`
	HasMore    bool    `json:"has_more"`
	Cursor     string  `json:"cursor"`
	RetryAfter int     `json:"retry_after_s,omitempty"`
	Error      string  `json:"error,omitempty"`
	Multiplier float64 `json:"multiplier"`
	IntervalMs int64   `json:"interval_ms"`
}

// NewPollEvent builds a poll event from an outcome and the cadence state
// in effect after the outcome was recorded.
func NewPollEvent(feed string, outcome types.PollOutcome, cursor string, multiplier float64, interval time.Duration) StreamEvent {
	evt := PollEvent{
		Feed:       feed,
		Outcome:    string(outcome.Kind),
		Cursor:     cursor,
		Multiplier: multiplier,
		IntervalMs: interval.Milliseconds(),
	}
	switch outcome.Kind {
	case types.OutcomeSuccess:
		evt.Count = outcome.Page.Count
		evt.HasMore = outcome.Page.HasMore
	case types.OutcomeRateLimited:
		evt.RetryAfter = outcome.RetryAfterSeconds
	case types.OutcomeTransportError:
		evt.Error = outcome.Message
	}

	return StreamEvent{
		Type:      "poll",
		Timestamp: time.Now(),
		Feed:      feed,
		Data:      evt,
	}
}
