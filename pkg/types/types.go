// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the poller — feed wire types
// and the typed outcome of a single poll attempt. It has no dependencies
// on internal packages, so it can be imported by any layer.
package types

import "fmt"

// Post is a single feed entry as returned by the Beam API. The poller
// forwards posts without interpreting them; rendering and deduplication
// belong to the consuming layer.
type Post struct {
	ID        string `json:"id"`
	Author    string `json:"author"` // wallet address of the poster
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"` // epoch millis
	Likes     int    `json:"likes"`
	Replies   int    `json:"replies"`
}

// FeedPage is the success body for both feed endpoints.
//
// Since is the opaque cursor for the next incremental fetch; callers
// pass it back verbatim on the next poll.
type FeedPage struct {
	Posts      []Post `json:"posts"`
	Count      int    `json:"count"`
	Since      string `json:"since"`
	HasMore    bool   `json:"has_more"`
	ServerTime int64  `json:"server_time"`
}

// OutcomeKind tags a PollOutcome.
type OutcomeKind string

const (
	// OutcomeSuccess carries a FeedPage.
	OutcomeSuccess OutcomeKind = "success"
	// OutcomeRateLimited means the server returned 429; RetryAfterSeconds
	// holds the server-declared delay.
	OutcomeRateLimited OutcomeKind = "rate_limited"
	// OutcomeAuthRequired means the watchlist needs a (re-)authenticated
	// session before it can be polled again.
	OutcomeAuthRequired OutcomeKind = "auth_required"
	// OutcomeTransportError covers network failures, parse failures, and
	// unexpected HTTP statuses.
	OutcomeTransportError OutcomeKind = "transport_error"
)

// PollOutcome is the tagged result of one poll attempt. It is constructed
// per request, consumed synchronously by the coordinator, and never
// persisted.
type PollOutcome struct {
	Kind              OutcomeKind
	Page              *FeedPage // set when Kind == OutcomeSuccess
	RetryAfterSeconds int       // set when Kind == OutcomeRateLimited
	Message           string    // set when Kind == OutcomeTransportError
}

// SuccessOutcome wraps a fetched page.
func SuccessOutcome(page *FeedPage) PollOutcome {
	return PollOutcome{Kind: OutcomeSuccess, Page: page}
}

// RateLimitedOutcome records a 429 with the server-declared delay.
func RateLimitedOutcome(retryAfterSeconds int) PollOutcome {
	return PollOutcome{Kind: OutcomeRateLimited, RetryAfterSeconds: retryAfterSeconds}
}

// AuthRequiredOutcome signals that watchlist polling needs a credential.
func AuthRequiredOutcome() PollOutcome {
	return PollOutcome{Kind: OutcomeAuthRequired}
}

// TransportErrorOutcome records a network or protocol failure.
func TransportErrorOutcome(format string, args ...any) PollOutcome {
	return PollOutcome{Kind: OutcomeTransportError, Message: fmt.Sprintf(format, args...)}
}

// Success reports whether a page was fetched.
func (o PollOutcome) Success() bool { return o.Kind == OutcomeSuccess }
