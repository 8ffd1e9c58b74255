package http

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// rateLimiter counts requests per owner over a fixed one-minute window. The
// owner is the natural key here: every authenticated request can trigger an
// engine pass, and the limiter caps how hard one owner can hammer that path.
type rateLimiter struct {
	mu      sync.Mutex
	owners  map[int64]*ownerWindow
	stop    chan struct{}
	once    sync.Once
	perMin  int
	cleanup time.Duration
}

type ownerWindow struct {
	windowStart time.Time
	requests    int
}

const defaultRequestsPerMinute = 240

func newRateLimiter(perMinute int) *rateLimiter {
	if perMinute <= 0 {
		perMinute = defaultRequestsPerMinute
	}
	rl := &rateLimiter{
		owners:  make(map[int64]*ownerWindow),
		stop:    make(chan struct{}),
		perMin:  perMinute,
		cleanup: 5 * time.Minute,
	}
	go rl.runCleanup()
	return rl
}

func (rl *rateLimiter) allow(ownerID int64) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.owners[ownerID]
	if !ok || now.Sub(w.windowStart) > time.Minute {
		rl.owners[ownerID] = &ownerWindow{windowStart: now, requests: 1}
		return true
	}

	w.requests++
	return w.requests <= rl.perMin
}

func (rl *rateLimiter) runCleanup() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.dropStale()
		case <-rl.stop:
			return
		}
	}
}

func (rl *rateLimiter) dropStale() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := time.Now().Add(-10 * time.Minute)
	for owner, w := range rl.owners {
		if w.windowStart.Before(cutoff) {
			delete(rl.owners, owner)
		}
	}
}

// Stop shuts down the cleanup goroutine.
func (rl *rateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

func respondRateLimited(w http.ResponseWriter) {
	w.Header().Set("Retry-After", strconv.Itoa(60))
	respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
}
