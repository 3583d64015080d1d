// Package feed implements the adaptive polling core for the Beam social API.
//
// Four pieces cooperate:
//
//   - RateLimitTracker: latest server-advertised quota (remaining, reset,
//     retry-after), updated from every response, error paths included.
//   - Backoff: multiplicative interval scaling — doubles on failure or
//     throttle, resets to 1 on success.
//   - Poller: issues one GET against the public or watchlist endpoint and
//     normalizes the result into a typed PollOutcome.
//   - Coordinator: the facade the scheduling layer talks to. It records
//     outcomes into the shared tracker/backoff state and answers "how long
//     until the next poll".
//
// The package never sleeps on behalf of a caller: every query returns
// advice, and the loop that owns the timer decides when to act on it.
package feed

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/beamdotfun/feedpoll/internal/config"
	"github.com/beamdotfun/feedpoll/pkg/types"
)

// Endpoint identifies which feed a poll targets.
type Endpoint string

const (
	FeedPublic    Endpoint = "public"
	FeedWatchlist Endpoint = "watchlist"
)

// defaultRetryAfterSeconds applies when a 429 arrives without a parseable
// retry-after header.
const defaultRetryAfterSeconds = 60

// Poller issues a single poll request against one feed endpoint. It never
// retries on its own — retry timing belongs to the coordinator and the
// caller's scheduling loop.
type Poller struct {
	http    *resty.Client
	tokens  TokenProvider
	tracker *RateLimitTracker
	paths   map[Endpoint]string
	logger  *slog.Logger
}

// NewPoller creates a poller sharing the given tracker with the coordinator.
func NewPoller(cfg config.APIConfig, tokens TokenProvider, tracker *RateLimitTracker, logger *slog.Logger) *Poller {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &Poller{
		http:    httpClient,
		tokens:  tokens,
		tracker: tracker,
		paths: map[Endpoint]string{
			FeedPublic:    cfg.PublicPath,
			FeedWatchlist: cfg.WatchlistPath,
		},
		logger: logger.With("component", "poller"),
	}
}

// Poll fetches one page from the given endpoint. cursor may be empty for a
// from-the-top fetch. On every received response — success, 429, or other
// error — headers are passed to the rate-limit tracker, since even a
// rejection carries the freshest quota snapshot.
func (p *Poller) Poll(ctx context.Context, endpoint Endpoint, cursor string, limit int) types.PollOutcome {
	var token string
	if endpoint == FeedWatchlist {
		tok, ok := p.tokens.CurrentToken()
		if !ok {
			// Fail fast: no credential means a guaranteed 401, so don't
			// spend quota finding that out.
			return types.AuthRequiredOutcome()
		}
		token = tok
	}

	req := p.http.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&types.FeedPage{})
	if cursor != "" {
		req.SetQueryParam("since", cursor)
	}
	if token != "" {
		req.SetAuthToken(token)
	}

	resp, err := req.Get(p.paths[endpoint])
	if err != nil {
		// A parse failure still rode in on a real response; its quota
		// headers are the freshest available.
		if resp != nil && resp.RawResponse != nil && ctx.Err() == nil {
			p.tracker.Observe(resp.Header())
		}
		return types.TransportErrorOutcome("poll %s: %v", endpoint, err)
	}

	// A result that lands after the initiating context is gone is stale:
	// the view that wanted it no longer exists, and its quota snapshot
	// must not push the shared state around.
	if ctx.Err() != nil {
		return types.TransportErrorOutcome("poll %s: %v", endpoint, ctx.Err())
	}

	p.tracker.Observe(resp.Header())

	switch resp.StatusCode() {
	case http.StatusOK:
		page, ok := resp.Result().(*types.FeedPage)
		if !ok || page == nil {
			return types.TransportErrorOutcome("poll %s: malformed response body", endpoint)
		}
		return types.SuccessOutcome(page)

	case http.StatusTooManyRequests:
		return types.RateLimitedOutcome(retryAfterSeconds(resp.Header()))

	case http.StatusUnauthorized:
		if endpoint == FeedWatchlist {
			// Server is authoritative: the cached token is no good even if
			// the provider still hands it out.
			return types.AuthRequiredOutcome()
		}
		return types.TransportErrorOutcome("poll %s: status %d", endpoint, resp.StatusCode())

	default:
		return types.TransportErrorOutcome("poll %s: status %d", endpoint, resp.StatusCode())
	}
}

// retryAfterSeconds extracts the server-declared delay from a 429 response,
// falling back to defaultRetryAfterSeconds when absent or unparsable.
func retryAfterSeconds(h http.Header) int {
	if v := h.Get("retry-after"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			return sec
		}
	}
	return defaultRetryAfterSeconds
}
