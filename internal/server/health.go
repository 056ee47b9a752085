package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/54b3r/ragdesk/internal/logging"
	"github.com/54b3r/ragdesk/internal/version"
)

// probeTimeout bounds each dependency probe during a readiness check.
const probeTimeout = 5 * time.Second

// Pinger reports the reachability of one dependency. Ping returns nil when
// the dependency is healthy. Implementations must be safe for concurrent use.
type Pinger interface {
	// Ping checks whether the dependency is reachable within ctx.
	Ping(ctx context.Context) error

	// Name is the label used in readiness responses and the
	// ragdesk_dependency_up gauge (e.g. "groq", "qdrant", "ledger").
	Name() string
}

// readyCheck is the result of one probe.
type readyCheck struct {
	Name string `json:"name"`
	OK   bool   `json:"ok"`
	// LatencyMS is how long the probe took, in milliseconds.
	LatencyMS int64 `json:"latency_ms"`
	// Error is the failure reason. Empty on success.
	Error string `json:"error,omitempty"`
}

// readyResponse is the JSON body returned by GET /api/ready.
type readyResponse struct {
	// Ready is true only when every probe succeeded.
	Ready bool `json:"ready"`
	// Checks are in Pinger registration order.
	Checks []readyCheck `json:"checks"`
}

// healthResponse is the JSON body returned by GET /api/health.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// handleReady handles GET /api/ready. All probes run concurrently, each under
// probeTimeout, so the endpoint answers within one timeout even when several
// dependencies hang. Returns 503 when any probe fails.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	checks := s.probe(r.Context())
	resp := readyResponse{Ready: true, Checks: checks}
	for _, c := range checks {
		up := 0.0
		if c.OK {
			up = 1
		} else {
			resp.Ready = false
			log.Warn("readiness probe failed",
				slog.String("dependency", c.Name),
				slog.String("error", c.Error),
				slog.Int64("latency_ms", c.LatencyMS),
			)
		}
		s.metrics.dependencyUp.WithLabelValues(c.Name).Set(up)
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, r, status, resp)
}

// probe runs every pinger in parallel and returns the results in
// registration order.
func (s *Server) probe(ctx context.Context) []readyCheck {
	checks := make([]readyCheck, len(s.pingers))

	var wg sync.WaitGroup
	for i, p := range s.pingers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()

			start := time.Now()
			err := p.Ping(probeCtx)
			checks[i] = readyCheck{
				Name:      p.Name(),
				OK:        err == nil,
				LatencyMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				checks[i].Error = err.Error()
			}
		}()
	}
	wg.Wait()
	return checks
}

// handleHealth handles GET /api/health. It never touches dependencies.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, healthResponse{Status: "ok", Version: version.Version})
}
