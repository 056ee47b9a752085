package server

import (
	"errors"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/ragdesk/internal/logging"
)

// Route classes with independent budgets.
const (
	classQuery  = "query"
	classUpload = "upload"
)

// Default per-client budgets.
var (
	defaultQueryRate  = RateBudget{RPS: 2, Burst: 5}
	defaultUploadRate = RateBudget{RPS: 1, Burst: 10}
)

// limiterIdleTTL is how long an unused bucket is kept before eviction.
const limiterIdleTTL = 5 * time.Minute

var errRateLimited = errors.New("rate limit exceeded")

// RateBudget is a per-client token bucket.
type RateBudget struct {
	// RPS is the sustained request rate (requests/second).
	RPS float64
	// Burst is the maximum instantaneous burst.
	Burst int
}

// limiterKey identifies one bucket.
type limiterKey struct {
	class string
	ip    string
}

// bucket is a token bucket and the last time a request drew from it.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per (route class, client IP). Classes
// without a budget are not limited.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[limiterKey]*bucket
	budgets map[string]RateBudget
	// now is swapped in tests.
	now func() time.Time
}

// newRateLimiter constructs a rateLimiter and starts its eviction goroutine,
// which runs until the returned stop function is called.
func newRateLimiter(budgets map[string]RateBudget) (*rateLimiter, func()) {
	rl := &rateLimiter{
		buckets: make(map[limiterKey]*bucket),
		budgets: budgets,
		now:     time.Now,
	}

	stopCh := make(chan struct{})
	go rl.evictLoop(stopCh)

	var once sync.Once
	return rl, func() { once.Do(func() { close(stopCh) }) }
}

// allow draws one token for ip in class. When the bucket is empty it reports
// how long until a token is available.
func (rl *rateLimiter) allow(class, ip string) (bool, time.Duration) {
	budget, ok := rl.budgets[class]
	if !ok {
		return true, 0
	}

	rl.mu.Lock()
	now := rl.now()
	key := limiterKey{class: class, ip: ip}
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(budget.RPS), budget.Burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	res := b.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	if wait := res.DelayFrom(now); wait > 0 {
		res.CancelAt(now)
		return false, wait
	}
	return true, 0
}

// evictLoop calls evict every minute until stopCh is closed.
func (rl *rateLimiter) evictLoop(stopCh <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			rl.evict()
		}
	}
}

// evict drops buckets idle for longer than limiterIdleTTL.
func (rl *rateLimiter) evict() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-limiterIdleTTL)
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// size returns the number of live buckets.
func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// rateLimit wraps next with the class budget. Rejected requests get a JSON
// 429 with Retry-After in whole seconds.
func (s *Server) rateLimit(class string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		ok, wait := s.limiter.allow(class, ip)
		if !ok {
			retry := max(1, int(math.Ceil(wait.Seconds())))
			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				slog.String("ip", ip),
				slog.String("class", class),
				slog.Int("retry_after_s", retry),
			)
			s.metrics.rateLimitedTotal.WithLabelValues(class).Inc()
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			s.writeError(w, r, http.StatusTooManyRequests, errRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the host part of RemoteAddr. X-Forwarded-For is not
// trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
