package runner

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/beamdotfun/feedpoll/internal/analytics"
	"github.com/beamdotfun/feedpoll/internal/config"
	"github.com/beamdotfun/feedpoll/internal/feed"
	"github.com/beamdotfun/feedpoll/internal/store"
	"github.com/beamdotfun/feedpoll/pkg/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRunner(t *testing.T, handler http.Handler, token string) *Runner {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Config{
		API: config.APIConfig{
			BaseURL:       srv.URL,
			PublicPath:    "/api/v1/feed",
			WatchlistPath: "/api/v1/watchlist",
			Timeout:       2 * time.Second,
			AuthToken:     token,
		},
		Poll: config.PollConfig{
			BaseInterval:  5 * time.Millisecond,
			MaxMultiplier: 8,
			PageLimit:     20,
		},
	}

	cursors, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	coord := feed.NewCoordinator(cfg, feed.StaticToken(token), discardLogger())
	tracker := analytics.New(config.AnalyticsConfig{}, discardLogger())
	return New(cfg, coord, cursors, tracker, discardLogger())
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func feedStatus(r *Runner, name string) (f apiFeedStatus, ok bool) {
	for _, st := range r.FeedsSnapshot() {
		if st.Feed == name {
			return apiFeedStatus{st.Cursor, st.LastOutcome, st.Polls, st.Failures}, true
		}
	}
	return apiFeedStatus{}, false
}

type apiFeedStatus struct {
	Cursor      string
	LastOutcome string
	Polls       int
	Failures    int
}

func TestRunnerAdvancesCursor(t *testing.T) {
	t.Parallel()
	var seq atomic.Int32
	r := newTestRunner(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := seq.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(types.FeedPage{
			Since: "cursor-" + strconv.Itoa(int(n)),
			Count: 1,
		})
	}), "tok")

	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	ok := waitFor(t, 2*time.Second, func() bool {
		st, found := feedStatus(r, "public")
		return found && st.Polls >= 2 && st.Cursor != ""
	})
	if !ok {
		t.Fatal("runner never completed two public polls")
	}

	st, _ := feedStatus(r, "public")
	if st.LastOutcome != string(types.OutcomeSuccess) {
		t.Errorf("last outcome = %q, want success", st.LastOutcome)
	}
	if st.Failures != 0 {
		t.Errorf("failures = %d, want 0", st.Failures)
	}
}

func TestRunnerPersistsCursorAcrossRestart(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(types.FeedPage{Since: "resumed-here", Count: 1})
	}))
	defer srv.Close()

	cfg := config.Config{
		API: config.APIConfig{
			BaseURL:       srv.URL,
			PublicPath:    "/api/v1/feed",
			WatchlistPath: "/api/v1/watchlist",
			Timeout:       2 * time.Second,
		},
		Poll: config.PollConfig{BaseInterval: 5 * time.Millisecond, MaxMultiplier: 8, PageLimit: 20},
	}

	cursors, err := store.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	tracker := analytics.New(config.AnalyticsConfig{}, discardLogger())

	r1 := New(cfg, feed.NewCoordinator(cfg, feed.StaticToken(""), discardLogger()), cursors, tracker, discardLogger())
	if err := r1.Start(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 2*time.Second, func() bool {
		st, found := feedStatus(r1, "public")
		return found && st.Polls >= 1
	})
	r1.Stop()

	saved, err := cursors.LoadCursor("public")
	if err != nil {
		t.Fatal(err)
	}
	if saved != "resumed-here" {
		t.Fatalf("persisted cursor = %q, want resumed-here", saved)
	}

	// A fresh runner picks the cursor back up without polling.
	cursors2, err := store.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	tracker2 := analytics.New(config.AnalyticsConfig{}, discardLogger())
	r2 := New(cfg, feed.NewCoordinator(cfg, feed.StaticToken(""), discardLogger()), cursors2, tracker2, discardLogger())
	if err := r2.Start(); err != nil {
		t.Fatal(err)
	}
	defer r2.Stop()

	st, found := feedStatus(r2, "public")
	if !found || st.Cursor != "resumed-here" {
		t.Errorf("restored cursor = %+v, want resumed-here", st)
	}
}

func TestNextWaitPrefersRetryAfter(t *testing.T) {
	t.Parallel()
	var first atomic.Bool
	first.Store(true)
	r := newTestRunner(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if first.Swap(false) {
			w.Header().Set("retry-after", "45")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(types.FeedPage{})
	}), "")

	// Drive one rate-limited poll through the coordinator by hand; the
	// loops are not running so nothing else consumes the delay.
	r.pollOnce(context.Background(), feed.FeedPublic)

	// retry-after (45s) dwarfs the backed-off interval (5ms × 2).
	if w := r.nextWait(); w != 45*time.Second {
		t.Fatalf("nextWait() = %v, want 45s", w)
	}

	// The delay was consumed: the next wait falls back to the interval.
	if w := r.nextWait(); w != 10*time.Millisecond {
		t.Errorf("second nextWait() = %v, want 10ms (base × 2)", w)
	}
}

func TestRunnerWatchlistWithoutTokenReportsAuthRequired(t *testing.T) {
	t.Parallel()
	r := newTestRunner(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/api/v1/watchlist" {
			t.Error("watchlist should not be fetched without a token")
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(types.FeedPage{})
	}), "")

	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	ok := waitFor(t, 2*time.Second, func() bool {
		st, found := feedStatus(r, "watchlist")
		return found && st.Polls >= 1
	})
	if !ok {
		t.Fatal("watchlist loop never ran")
	}

	st, _ := feedStatus(r, "watchlist")
	if st.LastOutcome != string(types.OutcomeAuthRequired) {
		t.Errorf("watchlist outcome = %q, want auth_required", st.LastOutcome)
	}
}

func TestRunnerEmitsEvents(t *testing.T) {
	t.Parallel()
	r := newTestRunner(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(types.FeedPage{Since: "c1", Count: 2})
	}), "tok")

	if err := r.Start(); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-r.Events():
		if evt.Type != "poll" {
			t.Errorf("event type = %q, want poll", evt.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event emitted")
	}

	r.Stop()

	// Stop closes the stream.
	for range r.Events() {
	}
}
