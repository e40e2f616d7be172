package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrLimited is wrapped by errors for rejected requests.
var ErrLimited = errors.New("rate limit exceeded")

// CheckResult is the outcome of a rate limit check.
type CheckResult struct {
	Exceeded  bool
	Transport string
	Current   int
	Limit     int
	Reason    string
}

// Err returns an error wrapping ErrLimited, or nil when within limit.
func (r CheckResult) Err() error {
	if !r.Exceeded {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrLimited, r.Reason)
}

// Check compares the current count against the limit.
func Check(count int, limit *Limit) CheckResult {
	if !limit.active() {
		return CheckResult{}
	}
	if count >= limit.MaxRequests {
		return CheckResult{
			Exceeded: true,
			Current:  count,
			Limit:    limit.MaxRequests,
			Reason: fmt.Sprintf("%d/%d requests in %s window",
				count, limit.MaxRequests, limit.Window),
		}
	}
	return CheckResult{}
}

// Limiter keeps one window per transport. Safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	windows map[string]*Window
}

// NewLimiter creates a limiter. A nil or empty config allows everything.
func NewLimiter(cfg Config) *Limiter {
	return &Limiter{cfg: cfg, windows: map[string]*Window{}}
}

// SetConfig swaps the limits. Current windows are kept.
func (l *Limiter) SetConfig(cfg Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg = cfg
}

// Allow checks transport's limit at now and counts the request when it
// passes. Lookup order: cfg[transport] → cfg["*"] → allow.
func (l *Limiter) Allow(transport string, now time.Time) CheckResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit := l.cfg.For(transport)
	if !limit.active() {
		return CheckResult{}
	}

	w := l.windows[transport]
	if w == nil {
		w = &Window{Start: now}
		l.windows[transport] = w
	}
	result := Check(Snapshot(w, limit.Window, now), limit)
	if result.Exceeded {
		result.Transport = transport
		return result
	}
	Increment(w)
	return result
}
