// Package runner owns the scheduling loops that drive the coordinator.
//
// One goroutine per feed polls, records the cursor, and sleeps for
// whatever the coordinator advises: the steady-state interval stretched by
// backoff, or longer when a rate-limit wait is pending. The two loops run
// independently — neither blocks the other, they only share the
// coordinator's synchronized state.
//
// Lifecycle: New() → Start() → [runs until signal] → Stop()
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/beamdotfun/feedpoll/internal/analytics"
	"github.com/beamdotfun/feedpoll/internal/api"
	"github.com/beamdotfun/feedpoll/internal/config"
	"github.com/beamdotfun/feedpoll/internal/feed"
	"github.com/beamdotfun/feedpoll/internal/store"
	"github.com/beamdotfun/feedpoll/pkg/types"
)

// feedState tracks one feed's loop-local bookkeeping for snapshots.
type feedState struct {
	cursor       string
	lastOutcome  types.OutcomeKind
	lastPolledAt time.Time
	polls        int
	failures     int
}

// Runner drives both feed loops against a shared coordinator.
type Runner struct {
	cfg     config.Config
	coord   *feed.Coordinator
	cursors *store.Store
	tracker *analytics.Tracker
	logger  *slog.Logger

	events chan api.StreamEvent

	// states maps feed → loop bookkeeping. Protected by statesMu.
	states   map[feed.Endpoint]*feedState
	statesMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a runner. The analytics tracker may be disabled but not nil.
func New(cfg config.Config, coord *feed.Coordinator, cursors *store.Store, tracker *analytics.Tracker, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:     cfg,
		coord:   coord,
		cursors: cursors,
		tracker: tracker,
		logger:  logger.With("component", "runner"),
		events:  make(chan api.StreamEvent, 64),
		states: map[feed.Endpoint]*feedState{
			feed.FeedPublic:    {},
			feed.FeedWatchlist: {},
		},
	}
}

// Start restores cursors and launches one polling loop per feed.
func (r *Runner) Start() error {
	for endpoint, st := range r.states {
		cursor, err := r.cursors.LoadCursor(string(endpoint))
		if err != nil {
			return fmt.Errorf("load %s cursor: %w", endpoint, err)
		}
		st.cursor = cursor
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())

	for endpoint := range r.states {
		r.wg.Add(1)
		go func(ep feed.Endpoint) {
			defer r.wg.Done()
			r.loop(r.ctx, ep)
		}(endpoint)
	}

	r.logger.Info("polling started",
		"base_interval", r.cfg.Poll.BaseInterval,
		"page_limit", r.cfg.Poll.PageLimit,
	)
	return nil
}

// Stop cancels both loops, waits for them, and closes the event stream.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.tracker.Close()
	close(r.events)
}

// Events returns the stream consumed by the status server.
func (r *Runner) Events() <-chan api.StreamEvent {
	return r.events
}

// Coordinator exposes the shared coordinator for snapshot building.
func (r *Runner) Coordinator() *feed.Coordinator {
	return r.coord
}

// FeedsSnapshot returns per-feed status for the dashboard.
func (r *Runner) FeedsSnapshot() []api.FeedStatus {
	r.statesMu.RLock()
	defer r.statesMu.RUnlock()

	out := make([]api.FeedStatus, 0, len(r.states))
	for endpoint, st := range r.states {
		out = append(out, api.FeedStatus{
			Feed:         string(endpoint),
			Cursor:       st.cursor,
			LastOutcome:  string(st.lastOutcome),
			LastPolledAt: st.lastPolledAt,
			Polls:        st.polls,
			Failures:     st.failures,
		})
	}
	return out
}

// loop polls one feed until ctx is cancelled. The first poll fires
// immediately; each subsequent wait is the coordinator's steady-state
// interval, stretched by any pending rate-limit delay.
func (r *Runner) loop(ctx context.Context, endpoint feed.Endpoint) {
	for {
		r.pollOnce(ctx, endpoint)
		if ctx.Err() != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.nextWait()):
		}
	}
}

// nextWait is the gap before a loop's next poll: the steady-state interval
// stretched by backoff, or the coordinator's recommended wait when a
// rate-limit delay outgrows it. The recommended wait is one-shot, so
// whichever loop reads it first absorbs the server-declared delay.
func (r *Runner) nextWait() time.Duration {
	wait := r.coord.CurrentInterval()
	if w := r.coord.RecommendedWait(); w > wait {
		wait = w
	}
	return wait
}

func (r *Runner) pollOnce(ctx context.Context, endpoint feed.Endpoint) {
	cursor := r.currentCursor(endpoint)

	var outcome types.PollOutcome
	switch endpoint {
	case feed.FeedWatchlist:
		outcome = r.coord.PollWatchlist(ctx, cursor, r.cfg.Poll.PageLimit)
	default:
		outcome = r.coord.PollPublic(ctx, cursor, r.cfg.Poll.PageLimit)
	}

	// An abandoned cycle records nothing, mirroring the coordinator.
	if ctx.Err() != nil {
		return
	}

	next := r.recordOutcome(endpoint, cursor, outcome)
	r.tracker.TrackPoll(string(endpoint), outcome)
	r.emit(api.NewPollEvent(string(endpoint), outcome, next, r.coord.Multiplier(), r.coord.CurrentInterval()))

	if outcome.Success() {
		r.logger.Debug("poll ok",
			"feed", endpoint,
			"count", outcome.Page.Count,
			"has_more", outcome.Page.HasMore,
		)
	}
}

// recordOutcome updates loop bookkeeping and advances + persists the
// cursor on success. Returns the cursor to use next.
func (r *Runner) recordOutcome(endpoint feed.Endpoint, cursor string, outcome types.PollOutcome) string {
	next := cursor
	if outcome.Success() && outcome.Page.Since != "" {
		next = outcome.Page.Since
	}

	r.statesMu.Lock()
	st := r.states[endpoint]
	st.cursor = next
	st.lastOutcome = outcome.Kind
	st.lastPolledAt = time.Now()
	st.polls++
	if !outcome.Success() {
		st.failures++
	}
	r.statesMu.Unlock()

	if next != cursor {
		if err := r.cursors.SaveCursor(string(endpoint), next); err != nil {
			// A lost cursor only costs a refetch; don't disturb the loop.
			r.logger.Warn("cursor save failed", "feed", endpoint, "error", err)
		}
	}
	return next
}

func (r *Runner) currentCursor(endpoint feed.Endpoint) string {
	r.statesMu.RLock()
	defer r.statesMu.RUnlock()
	return r.states[endpoint].cursor
}

// emit sends an event without ever blocking a polling loop.
func (r *Runner) emit(evt api.StreamEvent) {
	select {
	case r.events <- evt:
	default:
		// Nobody is draining fast enough; stale events are worthless.
	}
}
