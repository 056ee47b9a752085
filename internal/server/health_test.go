package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/54b3r/ragdesk/internal/version"
)

// fakePinger is a test double for the Pinger interface.
type fakePinger struct {
	name string
	// err is returned by Ping; nil means healthy.
	err error
	// delay is slept before returning, or until ctx is done.
	delay time.Duration
}

func (f *fakePinger) Name() string { return f.name }

func (f *fakePinger) Ping(ctx context.Context) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

// newReadyTestServer builds a test env with the given pingers wired in.
func newReadyTestServer(t *testing.T, pingers ...Pinger) *testEnv {
	t.Helper()
	env := newTestEnv(t, nil)
	env.srv.pingers = pingers
	return env
}

// ── GET /api/health ───────────────────────────────────────────────────────────

func TestHandleHealth_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.handleHealth(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: expected application/json, got %q", ct)
	}
	body := decode[healthResponse](t, w)
	if body.Status != "ok" || body.Version != version.Version {
		t.Errorf("body = %+v", body)
	}
}

// ── GET /api/ready ────────────────────────────────────────────────────────────

func TestHandleReady(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		pingers    []Pinger
		wantStatus int
		wantReady  bool
		wantOK     []bool
	}{
		{
			name:       "no pingers",
			wantStatus: http.StatusOK,
			wantReady:  true,
		},
		{
			name: "all healthy",
			pingers: []Pinger{
				&fakePinger{name: "groq"},
				&fakePinger{name: "qdrant"},
			},
			wantStatus: http.StatusOK,
			wantReady:  true,
			wantOK:     []bool{true, true},
		},
		{
			name: "one failing",
			pingers: []Pinger{
				&fakePinger{name: "groq"},
				&fakePinger{name: "qdrant", err: errors.New("connection refused")},
				&fakePinger{name: "ledger"},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantOK:     []bool{true, false, true},
		},
		{
			name: "all failing",
			pingers: []Pinger{
				&fakePinger{name: "groq", err: errors.New("timeout")},
				&fakePinger{name: "qdrant", err: errors.New("connection refused")},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantOK:     []bool{false, false},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			env := newReadyTestServer(t, tc.pingers...)
			w := httptest.NewRecorder()
			env.srv.handleReady(w, httptest.NewRequest(http.MethodGet, "/api/ready", nil))

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tc.wantStatus, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			resp := decode[readyResponse](t, w)
			if resp.Ready != tc.wantReady {
				t.Errorf("ready = %v, want %v", resp.Ready, tc.wantReady)
			}
			if len(resp.Checks) != len(tc.wantOK) {
				t.Fatalf("got %d checks, want %d", len(resp.Checks), len(tc.wantOK))
			}
			for i, c := range resp.Checks {
				if c.Name != tc.pingers[i].Name() {
					t.Errorf("check %d name = %q, want registration order %q", i, c.Name, tc.pingers[i].Name())
				}
				if c.OK != tc.wantOK[i] {
					t.Errorf("check %q ok = %v, want %v", c.Name, c.OK, tc.wantOK[i])
				}
				if c.OK == (c.Error != "") {
					t.Errorf("check %q: ok=%v but error=%q", c.Name, c.OK, c.Error)
				}

				want := 0.0
				if tc.wantOK[i] {
					want = 1
				}
				m := findMetric(t, env.reg, "ragdesk_dependency_up", map[string]string{"dependency": c.Name})
				if m == nil || m.GetGauge().GetValue() != want {
					t.Errorf("dependency_up{%s} = %v, want %v", c.Name, m, want)
				}
			}
		})
	}
}

func TestHandleReady_ProbesRunConcurrently(t *testing.T) {
	t.Parallel()

	const delay = 200 * time.Millisecond
	env := newReadyTestServer(t,
		&fakePinger{name: "a", delay: delay},
		&fakePinger{name: "b", delay: delay},
		&fakePinger{name: "c", delay: delay},
	)

	start := time.Now()
	w := httptest.NewRecorder()
	env.srv.handleReady(w, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	elapsed := time.Since(start)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if elapsed >= 3*delay {
		t.Errorf("readiness took %v, probes appear to run sequentially", elapsed)
	}
	for _, c := range decode[readyResponse](t, w).Checks {
		if c.LatencyMS < delay.Milliseconds()/2 {
			t.Errorf("check %q latency = %dms, want about %dms", c.Name, c.LatencyMS, delay.Milliseconds())
		}
	}
}

func TestHandleReady_CancelledRequest(t *testing.T) {
	t.Parallel()

	env := newReadyTestServer(t, &fakePinger{name: "slow", delay: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := httptest.NewRecorder()
	env.srv.handleReady(w, httptest.NewRequest(http.MethodGet, "/api/ready", nil).WithContext(ctx))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when the request context is gone", w.Code)
	}
}
