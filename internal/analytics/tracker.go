// Package analytics ships best-effort poll telemetry.
//
// Events are fired in detached goroutines and their failures are logged,
// never propagated: analytics must not influence polling cadence or
// backoff state in any way. A disabled tracker is a no-op.
package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/beamdotfun/feedpoll/internal/config"
	"github.com/beamdotfun/feedpoll/pkg/types"
)

const sendTimeout = 5 * time.Second

// Event is the telemetry payload for one poll attempt.
type Event struct {
	ID        string `json:"id"`
	Feed      string `json:"feed"`
	Outcome   string `json:"outcome"`
	Count     int    `json:"count,omitempty"`
	Timestamp int64  `json:"timestamp"` // epoch millis
}

// Tracker posts events to the configured analytics endpoint.
type Tracker struct {
	http    *resty.Client
	enabled bool
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// New creates a tracker. When cfg.Enabled is false every call is a no-op.
func New(cfg config.AnalyticsConfig, logger *slog.Logger) *Tracker {
	t := &Tracker{
		enabled: cfg.Enabled,
		logger:  logger.With("component", "analytics"),
	}
	if cfg.Enabled {
		t.http = resty.New().
			SetBaseURL(cfg.Endpoint).
			SetTimeout(sendTimeout)
	}
	return t
}

// TrackPoll records one poll attempt, fire-and-forget.
func (t *Tracker) TrackPoll(feed string, outcome types.PollOutcome) {
	if !t.enabled {
		return
	}

	evt := Event{
		ID:        uuid.NewString(),
		Feed:      feed,
		Outcome:   string(outcome.Kind),
		Timestamp: time.Now().UnixMilli(),
	}
	if outcome.Page != nil {
		evt.Count = outcome.Page.Count
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		resp, err := t.http.R().
			SetContext(ctx).
			SetBody(evt).
			Post("/events")
		if err != nil {
			t.logger.Debug("analytics send failed", "event_id", evt.ID, "error", err)
			return
		}
		if resp.StatusCode() >= 300 {
			t.logger.Debug("analytics send rejected", "event_id", evt.ID, "status", resp.StatusCode())
		}
	}()
}

// Close waits for in-flight events to drain.
func (t *Tracker) Close() {
	t.wg.Wait()
}
