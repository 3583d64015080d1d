package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/beamdotfun/feedpoll/internal/config"
	"github.com/beamdotfun/feedpoll/pkg/types"
)

// Page limits accepted by the feed endpoints.
const (
	defaultPageLimit = 20
	maxPageLimit     = 50
)

// State labels the coordinator's conceptual position for observability.
type State string

const (
	// StateNormal: multiplier is 1 and no server delay is outstanding.
	StateNormal State = "normal"
	// StateBackedOff: multiplier > 1 after failures or throttles.
	StateBackedOff State = "backed_off"
	// StateRateLimited: an unconsumed server-declared retry-after exists.
	StateRateLimited State = "rate_limited"
)

// Coordinator is the facade the scheduling layer drives. Both feeds share
// one rate-limit tracker and one backoff instance because the server
// enforces a combined quota; recording an outcome from either feed adjusts
// the cadence of both.
//
// The coordinator advises, never enforces: PollPublic/PollWatchlist issue
// exactly one request each, and the interval/wait queries tell the caller
// how long to sleep before the next one. Nothing here blocks a concurrent
// poll of the other feed.
type Coordinator struct {
	poller  *Poller
	tracker *RateLimitTracker
	backoff *Backoff
	logger  *slog.Logger
}

// NewCoordinator wires a poller, tracker, and backoff from config.
func NewCoordinator(cfg config.Config, tokens TokenProvider, logger *slog.Logger) *Coordinator {
	tracker := NewRateLimitTracker()
	return &Coordinator{
		poller:  NewPoller(cfg.API, tokens, tracker, logger),
		tracker: tracker,
		backoff: NewBackoff(cfg.Poll.BaseInterval, cfg.Poll.MaxMultiplier),
		logger:  logger.With("component", "coordinator"),
	}
}

// PollPublic fetches one page of the public feed. limit <= 0 means the
// default page size; values above the server maximum are clamped.
func (c *Coordinator) PollPublic(ctx context.Context, cursor string, limit int) types.PollOutcome {
	return c.poll(ctx, FeedPublic, cursor, limit)
}

// PollWatchlist fetches one page of the authenticated watchlist feed.
func (c *Coordinator) PollWatchlist(ctx context.Context, cursor string, limit int) types.PollOutcome {
	return c.poll(ctx, FeedWatchlist, cursor, limit)
}

func (c *Coordinator) poll(ctx context.Context, endpoint Endpoint, cursor string, limit int) types.PollOutcome {
	outcome := c.poller.Poll(ctx, endpoint, cursor, clampLimit(limit))

	// An abandoned poll cycle records nothing: a late result must not
	// force the client into backed-off for a concern that no longer applies.
	if ctx.Err() != nil {
		return outcome
	}

	c.record(endpoint, outcome)
	return outcome
}

// record applies the state transitions for one completed poll.
func (c *Coordinator) record(endpoint Endpoint, outcome types.PollOutcome) {
	switch outcome.Kind {
	case types.OutcomeSuccess:
		// Full recovery on one clean round-trip.
		c.backoff.OnSuccess()
		c.tracker.ClearRetryAfter()

	case types.OutcomeRateLimited:
		// Both penalties: the explicit delay governs the next wait, the
		// multiplier governs steady-state cadence going forward.
		c.tracker.SetRetryAfter(time.Duration(outcome.RetryAfterSeconds) * time.Second)
		c.backoff.OnFailure()
		c.logger.Warn("rate limited",
			"feed", endpoint,
			"retry_after_s", outcome.RetryAfterSeconds,
			"multiplier", c.backoff.Multiplier(),
		)

	case types.OutcomeTransportError:
		c.backoff.OnFailure()
		c.logger.Warn("poll failed",
			"feed", endpoint,
			"error", outcome.Message,
			"multiplier", c.backoff.Multiplier(),
		)

	case types.OutcomeAuthRequired:
		// Recoverable only by external re-authentication; slowing the
		// cadence would not change anything, so backoff stays put.
		c.logger.Info("watchlist needs authentication", "feed", endpoint)
	}
}

// CurrentInterval returns the effective steady-state polling interval.
func (c *Coordinator) CurrentInterval() time.Duration {
	return c.backoff.Interval()
}

// ShouldThrottle reports whether the proactive quota guard is active.
func (c *Coordinator) ShouldThrottle() bool {
	return c.tracker.ShouldThrottle()
}

// RecommendedWait returns how long the caller should delay its next poll
// beyond the steady-state interval. Consumes a pending retry-after.
func (c *Coordinator) RecommendedWait() time.Duration {
	return c.tracker.WaitTime()
}

// ResetBackoff forces the multiplier back to 1, e.g. when the owning view
// remounts and wants a fresh start.
func (c *Coordinator) ResetBackoff() {
	c.backoff.Reset()
}

// CurrentState derives the coordinator's conceptual state for status
// reporting. Rate-limited wins over backed-off while a server delay is
// outstanding.
func (c *Coordinator) CurrentState() State {
	if c.tracker.RetryAfterPending() {
		return StateRateLimited
	}
	if c.backoff.Multiplier() > 1 {
		return StateBackedOff
	}
	return StateNormal
}

// Multiplier exposes the current backoff multiplier for status reporting.
func (c *Coordinator) Multiplier() float64 {
	return c.backoff.Multiplier()
}

// RateLimitSnapshot exposes tracker state for status reporting.
func (c *Coordinator) RateLimitSnapshot() (remaining int, resetAtMs int64, retryAfter time.Duration) {
	return c.tracker.Snapshot()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}
