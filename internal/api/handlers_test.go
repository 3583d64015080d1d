package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/beamdotfun/feedpoll/internal/config"
	"github.com/beamdotfun/feedpoll/internal/feed"
)

func TestIsOriginAllowed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		origin  string
		cfg     config.DashboardConfig
		reqHost string
		want    bool
	}{
		{
			name:    "empty origin is allowed",
			origin:  "",
			cfg:     config.DashboardConfig{},
			reqHost: "localhost:8080",
			want:    true,
		},
		{
			name:    "localhost origin allowed by default",
			origin:  "http://localhost:8080",
			cfg:     config.DashboardConfig{},
			reqHost: "localhost:8080",
			want:    true,
		},
		{
			name:    "non-local origin denied by default",
			origin:  "https://evil.example",
			cfg:     config.DashboardConfig{},
			reqHost: "localhost:8080",
			want:    false,
		},
		{
			name:    "allowlist permits exact origin",
			origin:  "https://dash.example.com",
			cfg:     config.DashboardConfig{AllowedOrigins: []string{"https://dash.example.com"}},
			reqHost: "0.0.0.0:8080",
			want:    true,
		},
		{
			name:    "allowlist denies everything else",
			origin:  "https://evil.example",
			cfg:     config.DashboardConfig{AllowedOrigins: []string{"https://dash.example.com"}},
			reqHost: "0.0.0.0:8080",
			want:    false,
		},
		{
			name:    "same host allowed when no allowlist",
			origin:  "https://poller.internal:8080",
			cfg:     config.DashboardConfig{},
			reqHost: "poller.internal:8080",
			want:    true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isOriginAllowed(tt.origin, tt.cfg, tt.reqHost); got != tt.want {
				t.Fatalf("isOriginAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

// stubProvider backs handler tests with a real coordinator that never
// issues requests.
type stubProvider struct {
	coord  *feed.Coordinator
	events chan StreamEvent
}

func newStubProvider() *stubProvider {
	cfg := config.Config{
		API:  config.APIConfig{BaseURL: "http://localhost:0", Timeout: time.Second},
		Poll: config.PollConfig{BaseInterval: 30 * time.Second, MaxMultiplier: 8},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &stubProvider{
		coord:  feed.NewCoordinator(cfg, feed.StaticToken(""), logger),
		events: make(chan StreamEvent),
	}
}

func (s *stubProvider) FeedsSnapshot() []FeedStatus {
	return []FeedStatus{{Feed: "public", LastOutcome: "success", Polls: 3}}
}

func (s *stubProvider) Coordinator() *feed.Coordinator { return s.coord }

func (s *stubProvider) Events() <-chan StreamEvent { return s.events }

func TestHandleHealth(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandlers(newStubProvider(), config.DashboardConfig{}, NewHub(logger), logger)

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestHandleSnapshot(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandlers(newStubProvider(), config.DashboardConfig{}, NewHub(logger), logger)

	rec := httptest.NewRecorder()
	h.HandleSnapshot(rec, httptest.NewRequest(http.MethodGet, "/api/snapshot", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var snap Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.State != "normal" {
		t.Errorf("state = %q, want normal", snap.State)
	}
	if snap.Multiplier != 1 {
		t.Errorf("multiplier = %v, want 1", snap.Multiplier)
	}
	if snap.IntervalMs != 30000 {
		t.Errorf("interval = %d, want 30000", snap.IntervalMs)
	}
	if len(snap.Feeds) != 1 || snap.Feeds[0].Feed != "public" {
		t.Errorf("feeds = %+v", snap.Feeds)
	}
}
